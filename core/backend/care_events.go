package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/access"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/pointers"
)

// CareEventRequest is the body of POST /plants/{plant_id}/care_events. UserID defaults
// to the caller. A client supplied event_date is accepted but ignored, the server
// always logs events for today.
type CareEventRequest struct {
	EventType string  `json:"event_type"`
	Notes     *string `json:"notes"`
	UserID    *string `json:"user_id"`
}

func (b *Backend) handleCareEvents(router *mux.Router) {
	logger.Default().Debugln("care events")
	logger.Default().Debugln("  handle route: /plants/{plant_id}/care_events POST")
	logger.Default().Debugln("  handle route: /care_events/{care_event_id} GET")

	router.HandleFunc("/plants/{plant_id}/care_events", func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)
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
		var req CareEventRequest
		if err := b.decodeBody(r, "care_event", &req); err != nil {
			writeError(w, r, err)
			return
		}
		author, err := optionalID(req.UserID, "user_id", callerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resource := access.Resource{Kind: access.KindCareEvent, UserID: author}
		if err := access.Authorize(callerID, core.OperationCreate, resource).Err(); err != nil {
			writeError(w, r, err)
			return
		}
		event, err := b.planner.AddCareEvent(r.Context(), plantID, author, req.EventType, pointers.SafeString(req.Notes))
		if err != nil {
			writeError(w, r, err)
			return
		}
		rlog.Infoln("logged", event.EventType, "for plant", plantID)
		writeJSON(w, r, http.StatusCreated, event)
	}).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/care_events/{care_event_id}", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		eventID, err := pathID(r, "care_event_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		callerID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		event, err := b.planner.GetCareEvent(r.Context(), eventID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resource := access.Resource{Kind: access.KindCareEvent, UserID: event.UserID}
		if callerID != event.UserID {
			plant, err := b.planner.GetPlant(r.Context(), event.PlantID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			resource.Owners = plant.OwnerIDs()
		}
		if err := access.Authorize(callerID, core.OperationRead, resource).Err(); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, event)
	}).Methods(http.MethodOptions, http.MethodGet)
}
