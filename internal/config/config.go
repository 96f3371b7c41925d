// Package config loads the service configuration from the environment into
// one explicitly constructed struct that gets passed down; nothing reads
// os.Getenv after startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Provider selects the Backend: "local", "gcp" or "memory".
	Provider string

	// AuthProvider selects the token verifier: "jwt", "firebase" or
	// "disabled".
	AuthProvider string
	JWTSecret    string
	JWTIssuer    string

	// Local backend
	DatabaseDSN   string
	StorageDir    string
	StorageSecret string

	// GCP backend
	GCPProjectID string
	GCSBucket    string

	// Rate limiting; Redis is optional.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RateLimit     int
	RateWindow    time.Duration

	AllowedOrigins []string
	PresignExpiry  time.Duration
}

// Load reads .env when present and builds the config with defaults suited
// to local development.
func Load() *Config {
	// Missing .env is fine; the real environment takes precedence anyway.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Provider:       getEnv("BACKEND_PROVIDER", "local"),
		AuthProvider:   getEnv("AUTH_PROVIDER", "jwt"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTIssuer:      os.Getenv("JWT_ISSUER"),
		DatabaseDSN:    buildDSN(),
		StorageDir:     getEnv("STORAGE_DIR", "./data/storage"),
		StorageSecret:  getEnv("STORAGE_SECRET", "dev-storage-secret"),
		GCPProjectID:   os.Getenv("GCP_PROJECT_ID"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RateLimit:      getEnvInt("RATE_LIMIT", 100),
		RateWindow:     getEnvDuration("RATE_WINDOW", time.Minute),
		AllowedOrigins: splitNonEmpty(getEnv("ALLOWED_ORIGINS", "*")),
		PresignExpiry:  getEnvDuration("PRESIGNED_URL_EXPIRY", 5*time.Minute),
	}
}

// buildDSN assembles a Postgres DSN from the usual DB_* variables, or takes
// DATABASE_DSN verbatim when set.
func buildDSN() string {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + getEnv("DB_HOST", "localhost"),
		"port=" + getEnv("DB_PORT", "5432"),
		"user=" + getEnv("DB_USER", "postgres"),
		"password=" + os.Getenv("DB_PASSWORD"),
		"dbname=" + getEnv("DB_NAME", "simple_sns"),
		"sslmode=" + getEnv("DB_SSLMODE", "disable"),
		"TimeZone=UTC",
	}
	return strings.Join(parts, " ")
}

func getEnv(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(name string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return v
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
