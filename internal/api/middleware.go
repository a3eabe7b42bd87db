package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"loanapi/internal/models"
	"loanapi/internal/ratelimit"

	"github.com/gorilla/mux"
)

// newLoggingMiddleware logs each request that passed the rate limiter, keyed by
// the same client address the limiter uses.
func newLoggingMiddleware(trustProxy bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.InfoContext(r.Context(), fmt.Sprintf("%s %s - from IP: %s",
				r.Method, r.URL.RequestURI(), ratelimit.ClientIP(r, trustProxy)))
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware turns a handler panic into a 500 fail envelope
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed"))
}

// notFoundHandler handles requests for unknown paths
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, models.NewErrorResponse(fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path)))
}
