package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"snapjournal/internal/auth"
	"snapjournal/internal/metrics"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	email, ok := s[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{Email: email}, nil
}

// whoami echoes the identity set by the auth middleware.
func whoami(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Write([]byte(id.Email))
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(stubVerifier{"good": "a@x.com"}, []string{"/health"})(http.HandlerFunc(whoami))

	tests := []struct {
		name           string
		path           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "public path",
			path:           "/health",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "missing header",
			path:           "/api/feed",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "authorization required",
		},
		{
			name:           "wrong scheme",
			path:           "/api/feed",
			header:         "Basic good",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid authorization header",
		},
		{
			name:           "no token",
			path:           "/api/feed",
			header:         "Bearer",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid authorization header",
		},
		{
			name:           "unknown token",
			path:           "/api/feed",
			header:         "Bearer bad",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid token",
		},
		{
			name:           "valid token",
			path:           "/api/feed",
			header:         "Bearer good",
			expectedStatus: http.StatusOK,
			expectedBody:   "a@x.com",
		},
		{
			name:           "scheme is case insensitive",
			path:           "/api/feed",
			header:         "bearer good",
			expectedStatus: http.StatusOK,
			expectedBody:   "a@x.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/feed", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.False(t, called)
}

func TestChain_PreflightSkipsAuth(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(whoami),
		AuthMiddleware(stubVerifier{}, nil),
		CORSMiddleware,
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/feed", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingAndMetrics_UseRouteTemplate(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder := metrics.NewRecorder()

	r := mux.NewRouter()
	r.Use(
		mux.MiddlewareFunc(MetricsMiddleware(recorder)),
		mux.MiddlewareFunc(LoggingMiddleware(zap.New(core))),
	)
	r.HandleFunc("/api/users/{email}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}).Methods(http.MethodGet)

	for _, email := range []string{"a@x.com", "b@x.com"} {
		req := httptest.NewRequest(http.MethodGet, "/api/users/"+email, nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Email: "me@x.com"}))
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	stats := recorder.Snapshot()
	require.Len(t, stats, 2)
	assert.Equal(t, "GET /api/users/{email}", stats[0].Route)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.Equal(t, "GET /boom", stats[1].Route)
	assert.Equal(t, int64(1), stats[1].Errors)

	entries := logs.All()
	require.Len(t, entries, 3)
	first := entries[0].ContextMap()
	assert.Equal(t, "GET /api/users/{email}", first["route"])
	assert.Equal(t, "/api/users/a@x.com", first["path"])
	assert.Equal(t, int64(http.StatusOK), first["status"])
	assert.Equal(t, int64(2), first["bytes"])
	assert.Equal(t, "me@x.com", first["user"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}

func TestRouteName_OutsideRouter(t *testing.T) {
	assert.Equal(t, "POST /x/y", routeName(httptest.NewRequest(http.MethodPost, "/x/y", nil)))
}
