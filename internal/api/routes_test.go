package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"loanapi/internal/loans"
	"loanapi/internal/models"
	"loanapi/internal/ratelimit"
	"loanapi/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

// newTestRouter wires a memory store, the loan service and a 3-per-minute limiter.
func newTestRouter(t *testing.T) (http.Handler, *fakeClock) {
	t.Helper()
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.NewFixedWindowLimiter(3, time.Minute, ratelimit.WithClock(clock.Now))
	t.Cleanup(limiter.Close)

	handlers := NewHandlers(loans.NewService(store))
	router := SetupRoutes(handlers,
		WithRateLimiter(ratelimit.Middleware(limiter, ratelimit.WithSkipper(IsRateLimitExempt))),
	)
	return router, clock
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_CreateThenList(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/api/loans",
		`{"name":"Home Loan","amount":250000,"borrower":"John Doe","interestRate":4.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.CreateLoanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.Data.Loan)
	assert.NotEmpty(t, created.Data.Loan.ID)
	assert.Equal(t, models.LoanStatusPending, created.Data.Loan.Status)
	assert.Equal(t, "John Doe", created.Data.Loan.Borrower)

	rec = serve(router, http.MethodGet, "/api/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed models.ListLoansResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Results)
	require.Len(t, listed.Data.Loans, 1)
	assert.Equal(t, created.Data.Loan.ID, listed.Data.Loans[0].ID)
}

func TestRouter_CreateMissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodPost, "/api/loans", `{"name":"Home Loan","borrower":"John Doe"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, models.StatusFail, resp.Status)
	assert.Contains(t, resp.Message, "amount")
	assert.Contains(t, resp.Message, "interestRate")
}

func TestRouter_ListWithoutTrailingSlash(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimitFourthRequestRejected(t *testing.T) {
	router, clock := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rec := serve(router, http.MethodGet, "/api/", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := serve(router, http.MethodGet, "/api/", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, models.StatusFail, resp.Status)
	assert.Contains(t, resp.Message, "3 requests per minute")

	// Creates share the same per-client window.
	rec = serve(router, http.MethodPost, "/api/loans",
		`{"name":"Home Loan","amount":1,"borrower":"John Doe","interestRate":1}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	clock.Advance(time.Minute + time.Second)

	rec = serve(router, http.MethodGet, "/api/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ExemptRoutesNeverLimited(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/", "").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/api/", "").Code)

	for _, path := range []string{"/health", "/api-docs", "/api-docs/", "/api-docs/openapi.yaml"} {
		for i := 0; i < 5; i++ {
			rec := serve(router, http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, rec.Code, "%s request %d", path, i+1)
		}
	}
}

func TestRouter_RejectedRequestsAreNotLogged(t *testing.T) {
	logs := captureLogs(t)
	router, _ := newTestRouter(t)

	for i := 0; i < 4; i++ {
		serve(router, http.MethodGet, "/api/", "")
	}

	output := logs.String()
	assert.Equal(t, 3, strings.Count(output, "GET /api/ - from IP: 192.0.2.1"))
	assert.Contains(t, output, "Rate limit BLOCKED: IP 192.0.2.1")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodDelete, "/api/loans", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec.Body.Bytes()).Message)
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/api/unknown", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, models.StatusFail, resp.Status)
	assert.Equal(t, "Cannot GET /api/unknown", resp.Message)
}

func TestRecoveryMiddleware(t *testing.T) {
	captureLogs(t)
	handler := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec.Body.Bytes()).Message)
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		want       string
	}{
		{"socket address", false, "POST /api/loans?x=1 - from IP: 203.0.113.7"},
		{"forwarded address", true, "POST /api/loans?x=1 - from IP: 198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			handler := newLoggingMiddleware(tt.trustProxy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/loans?x=1", nil)
			req.RemoteAddr = "203.0.113.7:51000"
			req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Contains(t, logs.String(), tt.want)
		})
	}
}

func TestRouter_UnmatchedRequestsConsumeBudget(t *testing.T) {
	logs := captureLogs(t)
	router, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		rec := serve(router, http.MethodGet, "/nope", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := serve(router, http.MethodDelete, "/api/loans", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(router, http.MethodGet, "/api/", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = serve(router, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	output := logs.String()
	assert.Equal(t, 2, strings.Count(output, "GET /nope - from IP: 192.0.2.1"))
	assert.Equal(t, 1, strings.Count(output, "DELETE /api/loans - from IP: 192.0.2.1"))
	assert.NotContains(t, output, "GET /api/ - from IP")
}

func TestRouter_LogsForwardedClientWhenTrusted(t *testing.T) {
	logs := captureLogs(t)
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)
	limiter := ratelimit.NewFixedWindowLimiter(1, time.Minute)
	t.Cleanup(limiter.Close)

	router := SetupRoutes(NewHandlers(loans.NewService(store)),
		WithRateLimiter(ratelimit.Middleware(limiter, ratelimit.WithTrustProxyHeaders(true))),
		WithTrustProxyHeaders(true),
	)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.4")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	output := logs.String()
	assert.Contains(t, output, "GET /api/ - from IP: 198.51.100.4")
	assert.Contains(t, output, "Rate limit BLOCKED: IP 198.51.100.4")
	assert.NotContains(t, output, "from IP: 192.0.2.1")
}

func TestIsRateLimitExempt(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/api-docs", true},
		{"/api-docs/", true},
		{"/api-docs/openapi.yaml", true},
		{"/api/", false},
		{"/api/loans", false},
		{"/api-docsx", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, IsRateLimitExempt(req))
		})
	}
}

func TestSetupRoutes_WithOTelMiddleware(t *testing.T) {
	mockService := &MockLoanService{}
	mockService.On("List", mock.Anything).Return([]*models.Loan{}, nil)
	mockService.On("Health", mock.Anything).Return(nil)

	router := SetupRoutes(NewHandlers(mockService), WithOTelMiddleware("loanapi-test"))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	mockService.AssertExpectations(t)
}
