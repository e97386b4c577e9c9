package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapjournal/internal/config"
	"snapjournal/internal/docstore/memstore"
	"snapjournal/internal/metrics"
	"snapjournal/internal/repository"
	"snapjournal/internal/storage"
)

var pngHeader = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func pngUpload() (io.Reader, int64) {
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 256)...)
	return bytes.NewReader(body), int64(len(body))
}

type fakeMedia struct {
	mu       sync.Mutex
	uploads  []storage.Object
	deleted  []string
	failWith error
}

func (f *fakeMedia) Upload(ctx context.Context, obj storage.Object) (storage.StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return storage.StoredObject{}, f.failWith
	}
	if _, err := io.ReadAll(obj.Body); err != nil {
		return storage.StoredObject{}, err
	}
	f.uploads = append(f.uploads, obj)
	name := fmt.Sprintf("%s/%d%s", obj.Prefix, len(f.uploads), obj.Extension)
	return storage.StoredObject{Name: name, URL: "http://media.test/" + name}, nil
}

func (f *fakeMedia) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

var errUnavailable = errors.New("unavailable")

type testEnv struct {
	store *memstore.Store
	repo  *repository.Repository
	media *fakeMedia
	svc   *Service
}

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadSize: 1 << 20,
		Retry:         config.Retry{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		AtomicFollow:  true,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	store := memstore.New()
	repo := repository.NewRepository(store)
	media := &fakeMedia{}
	return &testEnv{
		store: store,
		repo:  repo,
		media: media,
		svc:   NewService(repo, cfg, media, nil, metrics.NewRecorder(), zap.NewNop()),
	}
}

func (e *testEnv) follow(t *testing.T, actor, target string) {
	t.Helper()
	require.NoError(t, e.svc.Graph.Follow(context.Background(), actor, target))
}

func (e *testEnv) publish(t *testing.T, author, caption string) {
	t.Helper()
	body, size := pngUpload()
	_, err := e.svc.Post.Publish(context.Background(), PublishRequest{
		Author: author, File: body, FileName: "p.png", Size: size, Caption: caption,
	})
	require.NoError(t, err)
}
