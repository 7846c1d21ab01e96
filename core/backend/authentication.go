package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/model"
)

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by /register and /login
type TokenResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// CheckAuthResponse is returned by /check-auth
type CheckAuthResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
}

func (b *Backend) handleAuthentication(router *mux.Router) {
	logger.Default().Debugln("authentication")
	logger.Default().Debugln("  handle route: /register POST")
	logger.Default().Debugln("  handle route: /login POST")
	logger.Default().Debugln("  handle route: /logout POST")
	logger.Default().Debugln("  handle route: /check-auth GET")

	router.HandleFunc("/register", b.limiter.limit(func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)

		var req RegisterRequest
		if err := b.decodeBody(r, "register", &req); err != nil {
			writeError(w, r, err)
			return
		}
		user, err := b.planner.CreateUser(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		token, err := b.auth.IssueToken(user.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rlog.Infoln("registered user", user.ID)
		writeJSON(w, r, http.StatusCreated, TokenResponse{Message: "User registered successfully", User: user, Token: token})
	})).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/login", b.limiter.limit(func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)

		var req LoginRequest
		if err := b.decodeBody(r, "login", &req); err != nil {
			writeError(w, r, err)
			return
		}
		user, err := b.planner.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		token, err := b.auth.IssueToken(user.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, TokenResponse{Message: "Login successful", User: user, Token: token})
	})).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		if _, err := caller(r); err != nil {
			writeError(w, r, err)
			return
		}
		// tokens are stateless, the client drops its copy
		writeJSON(w, r, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
	}).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/check-auth", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		userID, err := caller(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		user, err := b.planner.GetUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, CheckAuthResponse{Authenticated: true, User: user})
	}).Methods(http.MethodOptions, http.MethodGet)
}
