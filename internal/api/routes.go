package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// DocsPath is where the Swagger UI is served.
const DocsPath = "/api-docs"

type routeConfig struct {
	middlewares []mux.MiddlewareFunc
	trustProxy  bool
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeConfig)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(c *routeConfig) {
		c.middlewares = append(c.middlewares, otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return !IsRateLimitExempt(r)
			}),
		))
	}
}

// WithRateLimiter adds rate limiting middleware to the router. Options are applied
// before the logging middleware, so rejected requests are never logged as served.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(c *routeConfig) {
		c.middlewares = append(c.middlewares, middleware)
	}
}

// WithTrustProxyHeaders makes the request log report the forwarded client address,
// matching the key the rate limiter uses.
func WithTrustProxyHeaders(trust bool) RouteOption {
	return func(c *routeConfig) {
		c.trustProxy = trust
	}
}

// IsRateLimitExempt reports whether r targets the documentation or health endpoints,
// which are neither rate limited nor traced.
func IsRateLimitExempt(r *http.Request) bool {
	p := r.URL.Path
	return p == "/health" || p == DocsPath || strings.HasPrefix(p, DocsPath+"/")
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, opts ...RouteOption) *mux.Router {
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	chain := append(cfg.middlewares, newLoggingMiddleware(cfg.trustProxy), recoveryMiddleware)

	router := mux.NewRouter()

	router.HandleFunc("/api/", handlers.ListLoans).Methods(http.MethodGet)
	router.HandleFunc("/api", handlers.ListLoans).Methods(http.MethodGet)
	router.HandleFunc("/api/loans", handlers.CreateLoan).Methods(http.MethodPost)

	router.HandleFunc(DocsPath, handlers.ServeSwaggerUI).Methods(http.MethodGet)
	router.HandleFunc(DocsPath+"/", handlers.ServeSwaggerUI).Methods(http.MethodGet)
	router.HandleFunc(DocsPath+"/openapi.yaml", handlers.ServeOpenAPISpec).Methods(http.MethodGet)

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	router.Use(chain...)

	// mux only runs Use middlewares on matched routes
	router.MethodNotAllowedHandler = wrap(http.HandlerFunc(methodNotAllowedHandler), chain)
	router.NotFoundHandler = wrap(http.HandlerFunc(notFoundHandler), chain)

	return router
}

// wrap applies middlewares so the first one is outermost, the order mux uses.
func wrap(h http.Handler, middlewares []mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
