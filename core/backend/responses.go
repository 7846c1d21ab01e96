package backend

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/access"
	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/pointers"
)

// maxBodySize limits request bodies
const maxBodySize = 64 * 1024

// ErrorResponse is the body of all error responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is the body of responses which only confirm an action
type MessageResponse struct {
	Message string `json:"message"`
}

var errRateLimited = core.NewError(core.CategoryInternal, "rate_limited", "too many requests, try again later")

// statusOf maps an error to the HTTP status code
func statusOf(err error) int {
	if errors.Is(err, errRateLimited) {
		return http.StatusTooManyRequests
	}
	switch core.CategoryOf(err) {
	case core.CategoryValidation:
		return http.StatusBadRequest
	case core.CategoryAuth:
		return http.StatusUnauthorized
	case core.CategoryForbidden:
		return http.StatusForbidden
	case core.CategoryNotFound:
		return http.StatusNotFound
	case core.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as ErrorResponse. Internal errors are logged, their cause is
// not revealed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rlog := logger.FromContext(r.Context())
	status := statusOf(err)

	var cerr *core.Error
	if !errors.As(err, &cerr) {
		cerr = core.Internal(err).(*core.Error)
	}
	response := ErrorResponse{Error: cerr.Kind, Message: cerr.Message}
	if status == http.StatusInternalServerError {
		rlog.WithError(err).Errorln("Error 4700: internal error for", r.Method, r.URL.Path)
		response = ErrorResponse{Error: "internal_error", Message: "internal server error"}
	} else {
		rlog.Debugln("request failed with", status, cerr.Kind)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="plantparenthood"`)
	}
	writeJSON(w, r, status, response)
}

// writeJSON writes the response with the given status
func writeJSON(w http.ResponseWriter, r *http.Request, status int, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4701: cannot marshal response")
		http.Error(w, "Error 4701", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// decodeBody reads the request body, validates it against the schema with schemaID and
// unmarshals it into v.
func (b *Backend) decodeBody(r *http.Request, schemaID string, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return core.Validation("cannot read body: %s", err)
	}
	if len(body) > maxBodySize {
		return core.Validation("body exceeds %d bytes", maxBodySize)
	}
	if len(body) == 0 {
		return core.Validation("body is missing")
	}
	if err := b.validator.ValidateBytes(body, schemaURL(schemaID)); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return core.Validation("invalid JSON: %s", err)
	}
	return nil
}

func schemaURL(schemaID string) string {
	return "https://plantparenthood.app/schemas/" + schemaID + ".json"
}

// pathID parses the path variable name as uuid
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	value := mux.Vars(r)[name]
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, core.Validation("%s '%s' is not a valid uuid", name, value)
	}
	return id, nil
}

// caller returns the authenticated user. Unauthenticated requests fail with auth.ErrMissing.
func caller(r *http.Request) (uuid.UUID, error) {
	userID, ok := access.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, auth.ErrMissing
	}
	return userID, nil
}

// optionalID returns the parsed id, or fallback if id is nil
func optionalID(id *string, field string, fallback uuid.UUID) (uuid.UUID, error) {
	if pointers.NonEmpty(id) == nil {
		return fallback, nil
	}
	parsed, err := uuid.Parse(*id)
	if err != nil {
		return uuid.Nil, core.Validation("%s is not a valid uuid", field)
	}
	return parsed, nil
}
