package backend

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/access"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/planner"
)

func (b *Backend) handleUsers(router *mux.Router) {
	logger.Default().Debugln("users")
	logger.Default().Debugln("  handle route: /users GET")
	logger.Default().Debugln("  handle route: /users/{user_id} GET")
	logger.Default().Debugln("  handle route: /users/{user_id}/plants GET")
	logger.Default().Debugln("  handle route: /users/{user_id}/dashboard GET")
	logger.Default().Debugln("  handle route: /users/{user_id}/care_events GET")

	router.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		users, err := b.planner.ListUsers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, users)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/users/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		userID, err := pathID(r, "user_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		user, err := b.planner.GetUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, user)
	}).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/users/{user_id}/plants", b.selfOnly(access.KindUserPlants, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		plants, err := b.planner.ListPlants(r.Context(), &userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, plants)
	})).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/users/{user_id}/dashboard", b.selfOnly(access.KindDashboard, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		b.writeDashboard(w, r, userID)
	})).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/users/{user_id}/care_events", b.selfOnly(access.KindCareEvents, func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
		events, err := b.planner.ListCareEvents(r.Context(), planner.CareEventFilter{UserID: userID})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, events)
	})).Methods(http.MethodOptions, http.MethodGet)
}

// selfOnly wraps handlers for routes below /users/{user_id} which only the user
// themselves may access
func (b *Backend) selfOnly(kind access.Kind, h func(w http.ResponseWriter, r *http.Request, userID uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		userID, err := pathID(r, "user_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		callerID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resource := access.Resource{Kind: kind, UserID: userID}
		if err := access.Authorize(callerID, core.OperationList, resource).Err(); err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, userID)
	}
}
