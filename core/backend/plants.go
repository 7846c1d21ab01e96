package backend

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/access"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/model"
	"github.com/relabs-tech/plantparenthood/core/planner"
)

// PlantRequest is the body of POST /plants. UserID defaults to the caller.
type PlantRequest struct {
	Nickname  string  `json:"nickname"`
	SpeciesID string  `json:"species_id"`
	UserID    *string `json:"user_id"`
}

func (b *Backend) handlePlants(router *mux.Router) {
	logger.Default().Debugln("plants")
	logger.Default().Debugln("  handle route: /plants GET,POST")
	logger.Default().Debugln("  handle route: /plants/{plant_id} GET,DELETE")
	logger.Default().Debugln("  handle route: /plants/{plant_id}/care_events GET")

	router.HandleFunc("/plants", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		callerID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		owner := callerID
		if userID := r.URL.Query().Get("user_id"); userID != "" {
			if owner, err = optionalID(&userID, "user_id", callerID); err != nil {
				writeError(w, r, err)
				return
			}
		}
		resource := access.Resource{Kind: access.KindUserPlants, UserID: owner}
		if err := access.Authorize(callerID, core.OperationList, resource).Err(); err != nil {
			writeError(w, r, err)
			return
		}
		plants, err := b.planner.ListPlants(r.Context(), &owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, plants)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/plants", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		callerID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req PlantRequest
		if err := b.decodeBody(r, "plant", &req); err != nil {
			writeError(w, r, err)
			return
		}
		speciesID, err := uuid.Parse(req.SpeciesID)
		if err != nil {
			writeError(w, r, core.Validation("species_id is not a valid uuid"))
			return
		}
		owner, err := optionalID(req.UserID, "user_id", callerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resource := access.Resource{Kind: access.KindPlant, UserID: owner}
		if err := access.Authorize(callerID, core.OperationCreate, resource).Err(); err != nil {
			writeError(w, r, err)
			return
		}
		plant, err := b.planner.CreatePlant(r.Context(), req.Nickname, speciesID, owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, plant)
	}).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/plants/{plant_id}", b.ownersOnly(core.OperationRead, func(w http.ResponseWriter, r *http.Request, plant *model.Plant) {
		writeJSON(w, r, http.StatusOK, plant)
	})).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/plants/{plant_id}", b.ownersOnly(core.OperationDelete, func(w http.ResponseWriter, r *http.Request, plant *model.Plant) {
		if err := b.planner.DeletePlant(r.Context(), plant.ID); err != nil {
			writeError(w, r, err)
			return
		}
		logger.FromContext(r.Context()).Infoln("deleted plant", plant.ID)
		writeJSON(w, r, http.StatusOK, MessageResponse{Message: "Plant deleted successfully"})
	})).Methods(http.MethodOptions, http.MethodDelete)

	router.HandleFunc("/plants/{plant_id}/care_events", b.ownersOnly(core.OperationList, func(w http.ResponseWriter, r *http.Request, plant *model.Plant) {
		events, err := b.planner.ListCareEvents(r.Context(), planner.CareEventFilter{PlantID: plant.ID})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, events)
	})).Methods(http.MethodOptions, http.MethodGet)
}

// ownersOnly wraps handlers for routes below /plants/{plant_id} which only the owners of
// the plant may access. The plant is looked up first, so a missing plant is reported as
// such before ownership is checked.
func (b *Backend) ownersOnly(operation core.Operation, h func(w http.ResponseWriter, r *http.Request, plant *model.Plant)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		plantID, err := pathID(r, "plant_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		callerID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		plant, err := b.planner.GetPlant(r.Context(), plantID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resource := access.Resource{Kind: access.KindPlant, Owners: plant.OwnerIDs()}
		if err := access.Authorize(callerID, operation, resource).Err(); err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, plant)
	}
}
