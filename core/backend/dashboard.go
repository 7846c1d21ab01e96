package backend

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core/logger"
)

func (b *Backend) handleDashboard(router *mux.Router) {
	logger.Default().Debugln("dashboard")
	logger.Default().Debugln("  handle route: /dashboard GET")

	router.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		callerID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		b.writeDashboard(w, r, callerID)
	}).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) writeDashboard(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	dashboard, err := b.planner.GetDashboard(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dashboard)
}
