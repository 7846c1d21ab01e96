package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core/logger"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

// VersionResponse is the body of /version
type VersionResponse struct {
	Version string `json:"version"`
}

func (b *Backend) handleVersion(router *mux.Router) {
	logger.Default().Debugln("version")
	logger.Default().Debugln("  handle version route: /version GET")
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, VersionResponse{Version: Version})
	}).Methods(http.MethodOptions, http.MethodGet)
}
