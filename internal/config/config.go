package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StorePostgres  = "postgres"

	MediaMinIO = "minio"
	MediaGCS   = "gcs"

	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type DB struct {
	DbHOST       string
	DbPORT       string
	DbUSER       string
	DbPASSWORD   string
	DbNAME       string
	DbSSLMODE    string
	DbMIGRATIONS string
}

type Mongo struct {
	URI      string
	Database string
}

type Firebase struct {
	ProjectID       string
	CredentialsFile string
}

type MinIO struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	Region     string
	// PublicURL prefixes object names in returned links; defaults to the endpoint.
	PublicURL string
}

type GCS struct {
	Bucket string
}

type Retry struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

type Log struct {
	Level  string
	Format string
}

type Config struct {
	ServerPort           int
	StoreBackend         string
	DB                   DB
	Mongo                Mongo
	Firebase             Firebase
	MediaBackend         string
	MinIO                MinIO
	GCS                  GCS
	AuthProvider         string
	JWTSecretKey         string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	MaxUploadSize        int64
	Retry                Retry
	AtomicFollow         bool
	AllowSelfFollow      bool
	Log                  Log
}

// source resolves a key from the environment first, then from the optional
// YAML overlay.
type source struct {
	overlay map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if value, exists := os.LookupEnv(key); exists {
		return value, true
	}
	value, exists := s.overlay[key]
	return value, exists
}

func (s source) getEnv(key string, defaultValue string) string {
	if value, exists := s.lookup(key); exists {
		return value
	}
	return defaultValue
}

func (s source) getEnvBool(key string, fallback bool) bool {
	if value, ok := s.lookup(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

func (s source) getEnvAsInt(key string, defaultValue int) int {
	if value, ok := s.lookup(key); ok && value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := s.lookup(key); ok && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (s source) getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, ok := s.lookup(key); ok && value != "" {
		if size, err := strconv.ParseInt(value, 10, 64); err == nil {
			return size
		}
	}
	return defaultValue
}

func (s source) loadDB() DB {
	return DB{
		DbHOST:       s.getEnv("DB_HOST", "localhost"),
		DbPORT:       s.getEnv("DB_PORT", "5432"),
		DbUSER:       s.getEnv("DB_USER", "postgres"),
		DbPASSWORD:   s.getEnv("DB_PASSWORD", "password"),
		DbNAME:       s.getEnv("DB_NAME", "snapjournal"),
		DbSSLMODE:    s.getEnv("DB_SSLMODE", "disable"),
		DbMIGRATIONS: s.getEnv("DB_MIGRATIONS", "migrations/001_create_documents.sql"),
	}
}

func (s source) loadMinIO() MinIO {
	endpoint := s.getEnv("MINIO_ENDPOINT", "localhost:9000")
	useSSL := s.getEnvBool("MINIO_USE_SSL", false)
	scheme := "http://"
	if useSSL {
		scheme = "https://"
	}
	return MinIO{
		Endpoint:   endpoint,
		AccessKey:  s.getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:  s.getEnv("MINIO_SECRET_KEY", "minioadmin"),
		BucketName: s.getEnv("MINIO_BUCKET_NAME", "images"),
		UseSSL:     useSSL,
		Region:     s.getEnv("MINIO_REGION", "us-east-1"),
		PublicURL:  strings.TrimSuffix(s.getEnv("MINIO_PUBLIC_URL", scheme+endpoint), "/"),
	}
}

// LoadConfig reads .env, then the YAML file named by CONFIG_FILE, then the
// process environment. Environment variables win over the overlay.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	overlay, err := readOverlay(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	cfg := load(source{overlay: overlay})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(s source) *Config {
	return &Config{
		ServerPort:           s.getEnvAsInt("SERVER_PORT", 8080),
		StoreBackend:         strings.ToLower(s.getEnv("STORE_BACKEND", StoreMemory)),
		DB:                   s.loadDB(),
		Mongo: Mongo{
			URI:      s.getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: s.getEnv("MONGO_DB", "snapjournal"),
		},
		Firebase: Firebase{
			ProjectID:       s.getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: s.getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		MediaBackend:         strings.ToLower(s.getEnv("MEDIA_BACKEND", MediaMinIO)),
		MinIO:                s.loadMinIO(),
		GCS:                  GCS{Bucket: s.getEnv("GCS_BUCKET", "")},
		AuthProvider:         strings.ToLower(s.getEnv("AUTH_PROVIDER", AuthJWT)),
		JWTSecretKey:         s.getEnv("JWT_SECRET_KEY", ""),
		AccessTokenDuration:  s.getEnvDuration("ACCESS_TOKEN_DURATION", 2*time.Hour),
		RefreshTokenDuration: s.getEnvDuration("REFRESH_TOKEN_DURATION", 168*time.Hour),
		MaxUploadSize:        s.getEnvAsInt64("MAX_UPLOAD_SIZE", 10*1024*1024),
		Retry: Retry{
			MaxAttempts:    s.getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff: s.getEnvDuration("RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		},
		AtomicFollow:    s.getEnvBool("GRAPH_ATOMIC_FOLLOW", true),
		AllowSelfFollow: s.getEnvBool("GRAPH_ALLOW_SELF_FOLLOW", true),
		Log: Log{
			Level:  s.getEnv("LOG_LEVEL", "info"),
			Format: s.getEnv("LOG_FORMAT", "json"),
		},
	}
}

// readOverlay parses a flat YAML mapping of KEY: value pairs.
func readOverlay(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	overlay := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		overlay[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return overlay, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StorePostgres, StoreMongo:
	case StoreFirestore:
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.MediaBackend {
	case MediaMinIO:
	case MediaGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs media backend")
		}
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.MediaBackend)
	}

	switch c.AuthProvider {
	case AuthJWT:
		if c.JWTSecretKey == "" {
			return fmt.Errorf("JWT_SECRET_KEY is not set")
		}
	case AuthFirebase:
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for firebase auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// UsesFirebase reports whether any configured backend needs a Firebase app.
func (c *Config) UsesFirebase() bool {
	return c.StoreBackend == StoreFirestore || c.MediaBackend == MediaGCS || c.AuthProvider == AuthFirebase
}
