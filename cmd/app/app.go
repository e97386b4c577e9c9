package app

import (
	"context"
	"fmt"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"snapjournal/internal/auth"
	"snapjournal/internal/config"
	"snapjournal/internal/database"
	"snapjournal/internal/docstore"
	fsstore "snapjournal/internal/docstore/firestore"
	"snapjournal/internal/docstore/memstore"
	"snapjournal/internal/docstore/mongostore"
	"snapjournal/internal/docstore/postgres"
	handlers "snapjournal/internal/handler"
	"snapjournal/internal/metrics"
	"snapjournal/internal/middleware"
	"snapjournal/internal/repository"
	"snapjournal/internal/service"
	"snapjournal/internal/storage"
)

type App struct {
	Store    docstore.Store
	Repo     *repository.Repository
	Services *service.Service
	Handler  http.Handler
}

// Close releases the document store connection.
func (a *App) Close() error {
	return a.Store.Close()
}

// New connects every backend named in cfg and assembles the HTTP handler.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	var fbApp *firebase.App
	if cfg.UsesFirebase() {
		var err error
		fbApp, err = newFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	store, err := newStore(ctx, cfg, fbApp, log)
	if err != nil {
		return nil, err
	}

	media, err := newMediaStore(ctx, cfg, fbApp)
	if err != nil {
		store.Close()
		return nil, err
	}

	verifier, tokens, err := newAuth(ctx, cfg, fbApp)
	if err != nil {
		store.Close()
		return nil, err
	}

	recorder := metrics.NewRecorder()
	repo := repository.NewRepository(store)
	services := service.NewService(repo, cfg, media, tokens, recorder, log)
	h := handlers.NewHandlers(services, cfg, log)

	log.Info("backends ready",
		zap.String("store", cfg.StoreBackend),
		zap.String("media", cfg.MediaBackend),
		zap.String("auth", cfg.AuthProvider))

	return &App{
		Store:    store,
		Repo:     repo,
		Services: services,
		Handler:  Router(h, verifier, recorder, log),
	}, nil
}

// Router wires routes and middleware. CORS wraps everything so preflight
// requests never reach auth.
func Router(h *handlers.Handlers, verifier auth.Verifier, recorder *metrics.Recorder, log *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(
		mux.MiddlewareFunc(middleware.MetricsMiddleware(recorder)),
		mux.MiddlewareFunc(middleware.LoggingMiddleware(log)),
	)
	h.Routes(r)

	return middleware.Chain(
		r,
		middleware.AuthMiddleware(verifier, handlers.PublicPaths),
		middleware.CORSMiddleware,
	)
}

func newFirebaseApp(ctx context.Context, cfg config.Firebase) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	return fbApp, nil
}

func newStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App, log *zap.Logger) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := database.ConnectDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return postgres.New(db.DB), nil

	case config.StoreMongo:
		store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx, repository.Collections()...); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case config.StoreFirestore:
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		return fsstore.New(client), nil

	case config.StoreMemory:
		log.Warn("using in-memory document store; data is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func newMediaStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (storage.MediaStore, error) {
	switch cfg.MediaBackend {
	case config.MediaGCS:
		client, err := fbApp.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firebase storage: %w", err)
		}
		bucket, err := client.Bucket(cfg.GCS.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", cfg.GCS.Bucket, err)
		}
		return storage.NewGCSClient(bucket, cfg.GCS.Bucket), nil

	case config.MediaMinIO:
		return storage.NewMinIOClient(ctx, cfg.MinIO)
	}
	return nil, fmt.Errorf("unknown media backend %q", cfg.MediaBackend)
}

// newAuth returns the request verifier and, for the local provider, the
// token issuer used by the account endpoints.
func newAuth(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (auth.Verifier, service.TokenIssuer, error) {
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		client, err := fbApp.Auth(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("open firebase auth: %w", err)
		}
		return auth.NewFirebaseVerifier(client), nil, nil

	case config.AuthJWT:
		issuer := auth.NewTokenIssuer(cfg.JWTSecretKey, cfg.AccessTokenDuration, cfg.RefreshTokenDuration)
		return issuer, issuer, nil
	}
	return nil, nil, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider)
}
