package backend

import (
	"embed"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/plantparenthood/core/access"
	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/planner"
	"github.com/relabs-tech/plantparenthood/core/schema"
)

//go:embed schemas
var schemaFS embed.FS

// Backend is the REST API of the planner
type Backend struct {
	router    *mux.Router
	planner   *planner.Planner
	auth      *auth.Service
	validator *schema.Validator
	origins   map[string]bool
	limiter   *rateLimiter
	metrics   *metrics

	trustedProxies []*net.IPNet
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Planner gives access to the domain. This is mandatory.
	Planner *planner.Planner
	// Auth issues and resolves bearer tokens. This is mandatory.
	Auth *auth.Service
	// AllowedOrigins is the CORS allow-list. Cross-origin requests from other origins are rejected.
	AllowedOrigins []string
	// LoginRate limits /login and /register per client. Zero disables the limit.
	LoginRate rate.Limit
	// LoginBurst is the burst size for LoginRate
	LoginBurst int
	// TrustedProxies are the addresses or CIDRs of reverse proxies whose forwarding
	// headers are honoured. Forwarding headers from other clients are ignored.
	TrustedProxies []string
	// Registry receives the HTTP metrics. Defaults to a new registry which is served on /metrics.
	Registry *prometheus.Registry
}

// New realizes the actual backend. It adds middlewares and routes to the router.
func New(bb *Builder) *Backend {
	if bb.Router == nil {
		panic("Router is missing")
	}
	if bb.Planner == nil {
		panic("Planner is missing")
	}
	if bb.Auth == nil {
		panic("Auth is missing")
	}

	validator, err := schema.NewValidatorFromFS(schemaFS, "schemas")
	if err != nil {
		panic(err)
	}

	trustedProxies, err := parseTrustedProxies(bb.TrustedProxies)
	if err != nil {
		panic(err)
	}

	registry := bb.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	b := &Backend{
		router:    bb.Router,
		planner:   bb.Planner,
		auth:      bb.Auth,
		validator: validator,
		origins:   make(map[string]bool),
		limiter:   newRateLimiter(bb.LoginRate, bb.LoginBurst),
		metrics:   newMetrics(registry),

		trustedProxies: trustedProxies,
	}
	for _, origin := range bb.AllowedOrigins {
		b.origins[origin] = true
	}

	logger.AddRequestID(b.router)
	b.handleMetrics(b.router)
	b.handleCORS()
	b.handleCompression()
	b.router.Use(access.NewJwtMiddelware(&access.JwtMiddlewareBuilder{
		Auth:    b.auth,
		OnError: writeError,
	}))

	b.handleVersion(b.router)
	b.handleAuthentication(b.router)
	b.handleUsers(b.router)
	b.handleSpecies(b.router)
	b.handlePlants(b.router)
	b.handleCareEvents(b.router)
	b.handleDashboard(b.router)
	return b
}

// Handler returns the router wrapped into panic recovery and the forwarding headers of
// trusted proxies. Use this as the handler of the http server.
func (b *Backend) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(logrus.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)
	return b.proxyHeaders(recovery(b.router))
}

// Router returns the router
func (b *Backend) Router() *mux.Router {
	return b.router
}
