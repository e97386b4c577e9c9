package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapjournal/internal/auth"
	"snapjournal/internal/config"
	"snapjournal/internal/docstore/memstore"
	handlers "snapjournal/internal/handler"
	"snapjournal/internal/metrics"
	"snapjournal/internal/models"
	"snapjournal/internal/repository"
	"snapjournal/internal/service"
	"snapjournal/internal/storage"
)

type memMedia struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memMedia) Upload(ctx context.Context, obj storage.Object) (storage.StoredObject, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj.Body); err != nil {
		return storage.StoredObject{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := fmt.Sprintf("%s/%d%s", obj.Prefix, len(m.objects), obj.Extension)
	m.objects[name] = buf.Bytes()
	return storage.StoredObject{Name: name, URL: "http://media.test/" + name}, nil
}

func (m *memMedia) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

var png = append([]byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
}, bytes.Repeat([]byte{0}, 128)...)

type testServer struct {
	t       *testing.T
	handler http.Handler
	media   *memMedia
}

func newTestServer(t *testing.T) *testServer {
	cfg := &config.Config{
		StoreBackend:         config.StoreMemory,
		AuthProvider:         config.AuthJWT,
		JWTSecretKey:         "test-secret-key",
		AccessTokenDuration:  time.Hour,
		RefreshTokenDuration: 24 * time.Hour,
		MaxUploadSize:        1 << 20,
		Retry:                config.Retry{MaxAttempts: 2, InitialBackoff: time.Millisecond},
		AtomicFollow:         true,
	}
	issuer := auth.NewTokenIssuer(cfg.JWTSecretKey, cfg.AccessTokenDuration, cfg.RefreshTokenDuration)
	media := &memMedia{objects: make(map[string][]byte)}
	recorder := metrics.NewRecorder()
	log := zap.NewNop()

	services := service.NewService(repository.NewRepository(memstore.New()), cfg, media, issuer, recorder, log)
	h := handlers.NewHandlers(services, cfg, log)

	return &testServer{t: t, handler: Router(h, issuer, recorder, log), media: media}
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) json(method, target, token string, body interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(s.t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token)
}

func (s *testServer) register(email string) string {
	rr := s.json(http.MethodPost, "/api/auth/register", "", models.CreateAccountRequest{Email: email, Password: "password123"})
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())
	var pair models.TokenPair
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &pair))
	return pair.AccessToken
}

func (s *testServer) publish(token string, fields map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "photo.png")
	require.NoError(s.t, err)
	_, err = part.Write(png)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req, token)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestRouter_PublishReachesFollowers(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice@x.com")
	bob := s.register("Bob@X.com")

	rr := s.json(http.MethodPost, "/api/auth/login", "", handlers.LoginRequest{Email: "bob@x.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(httptest.NewRequest(http.MethodPost, "/api/users/alice@x.com/follow", nil), bob)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.publish(alice, map[string]string{
		"caption":   "sunset",
		"rating":    "5",
		"tags":      "beach,evening",
		"latitude":  "40.7",
		"longitude": "-74",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var published handlers.PublishResponse
	decode(t, rr, &published)
	require.NotNil(t, published.Post)
	assert.Equal(t, []string{"beach", "evening"}, published.Post.Tags)
	assert.Len(t, s.media.objects, 1)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/api/feed", nil), bob)
	require.Equal(t, http.StatusOK, rr.Code)
	var feed []models.Post
	decode(t, rr, &feed)
	require.Len(t, feed, 1)
	assert.Equal(t, published.Post.ID, feed[0].ID)
	assert.Equal(t, "alice@x.com", feed[0].Email)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/api/map", nil), bob)
	require.Equal(t, http.StatusOK, rr.Code)
	var view models.MapView
	decode(t, rr, &view)
	require.NotNil(t, view.Region)
	assert.InDelta(t, 40.7, view.Region.Latitude, 1e-9)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/api/notifications", nil), bob)
	require.Equal(t, http.StatusOK, rr.Code)
	var notes []models.Notification
	decode(t, rr, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, published.Post.ID, notes[0].ID)
	assert.Equal(t, "alice@x.com just uploaded an image", notes[0].Message)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/api/notifications", nil), alice)
	decode(t, rr, &notes)
	assert.Empty(t, notes)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/api/users/alice@x.com", nil), bob)
	require.Equal(t, http.StatusOK, rr.Code)
	var profile models.Profile
	decode(t, rr, &profile)
	assert.True(t, profile.IsFollowing)
	assert.Equal(t, 1, profile.FollowersCount)
	assert.Len(t, profile.Posts, 1)
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(httptest.NewRequest(http.MethodGet, "/api/feed", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/api/feed", nil), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(httptest.NewRequest(http.MethodOptions, "/api/feed", nil), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = s.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_StatsByRoute(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice@x.com")

	for _, target := range []string{"/api/users/a@x.com", "/api/users/b@x.com"} {
		s.do(httptest.NewRequest(http.MethodGet, target, nil), alice)
	}

	rr := s.do(httptest.NewRequest(http.MethodGet, "/stats", nil), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats handlers.StatsResponse
	decode(t, rr, &stats)

	counts := make(map[string]int64)
	for _, route := range stats.Routes {
		counts[route.Route] = route.Count
	}
	assert.Equal(t, int64(2), counts["GET /api/users/{email}"])
	assert.Equal(t, int64(1), counts["POST /api/auth/register"])
}

func TestNewStore_Memory(t *testing.T) {
	store, err := newStore(context.Background(), &config.Config{StoreBackend: config.StoreMemory}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())

	_, err = newStore(context.Background(), &config.Config{StoreBackend: "cassandra"}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestNewAuth(t *testing.T) {
	verifier, tokens, err := newAuth(context.Background(), &config.Config{
		AuthProvider:        config.AuthJWT,
		JWTSecretKey:        "k",
		AccessTokenDuration: time.Minute,
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, verifier)
	assert.NotNil(t, tokens)

	_, _, err = newAuth(context.Background(), &config.Config{AuthProvider: "saml"}, nil)
	assert.ErrorContains(t, err, "unknown auth provider")
}
