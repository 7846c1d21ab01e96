package access

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/logger"
)

// JwtMiddlewareBuilder is a helper builder for JwtMiddelware
type JwtMiddlewareBuilder struct {
	// Auth resolves bearer tokens. This is mandatory.
	Auth *auth.Service
	// OnError writes the response for a token which cannot be resolved. The default
	// writes a plain text 401.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// NewJwtMiddelware returns a middleware handler to validate
// JWT bearer token.
//
// Tokens are accepted as "Authorization: Bearer <token>" header. Requests without
// a token pass through unauthenticated; it is up to the handler to require
// authentication.
//
// This is a final handler with regards to the bearer token. It will answer
// with OnError when a token is available but cannot be resolved to an existing
// user.
func NewJwtMiddelware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {
	if jmb.Auth == nil {
		panic("Auth is missing")
	}
	onError := jmb.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "invalid token", http.StatusUnauthorized)
		}
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); ok { // already authenticated?
				h.ServeHTTP(w, r)
				return
			}

			tokenString, present := BearerToken(r)
			if !present {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			rlog := logger.FromContext(r.Context())
			userID, err := jmb.Auth.ResolveToken(r.Context(), tokenString)
			if err != nil {
				rlog.WithError(err).Infoln("rejected bearer token")
				onError(w, r, err)
				return
			}

			// now that we have authenticated the requester, we store their identity in the context
			ctx := ContextWithUserID(r.Context(), userID)
			ctx = ContextWithToken(ctx, tokenString)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, userID.String())
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header. The second return
// value is false if the request carries no Authorization header at all; a header
// with an empty token or another scheme yields ("", true), which resolves to a
// missing or malformed token.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || header == "null" {
		return "", false
	}
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:]), true
	}
	if strings.EqualFold(header, "bearer") {
		return "", true
	}
	// not a bearer scheme: hand a non empty garbage token to the parser
	return header, true
}
