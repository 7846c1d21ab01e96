package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core/logger"
)

// SpeciesRequest is the body of POST /species
type SpeciesRequest struct {
	CommonName        string `json:"common_name"`
	ScientificName    string `json:"scientific_name"`
	WateringFrequency string `json:"watering_frequency"`
}

// species are reference data, readable and creatable without authentication
func (b *Backend) handleSpecies(router *mux.Router) {
	logger.Default().Debugln("species")
	logger.Default().Debugln("  handle route: /species GET,POST")
	logger.Default().Debugln("  handle route: /species/{species_id} GET")

	router.HandleFunc("/species", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		species, err := b.planner.ListSpecies(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, species)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/species", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		var req SpeciesRequest
		if err := b.decodeBody(r, "species", &req); err != nil {
			writeError(w, r, err)
			return
		}
		species, err := b.planner.CreateSpecies(r.Context(), req.CommonName, req.ScientificName, req.WateringFrequency)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, species)
	}).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/species/{species_id}", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		speciesID, err := pathID(r, "species_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		species, err := b.planner.GetSpecies(r.Context(), speciesID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, species)
	}).Methods(http.MethodOptions, http.MethodGet)
}
