package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string

	// Storage
	StorageDriver              string // "firestore", "sqlite" or "postgres"
	DatabaseURL                string
	SQLitePath                 string
	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string

	// Authentication
	AuthProvider string // "jwt", "jwks" or "firebase"
	JWTSecret    string
	JWTIssuer    string
	JWKSURL      string

	// Real-time
	BroadcastDriver    string // "local", "nats" or "redis"
	NATSURL            string
	RedisURL           string
	WSHandshakeTimeout time.Duration
	WSAllowedOrigins   []string
	SendRate           float64
	SendBurst          int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StorageDriver:              strings.ToLower(getEnv("STORAGE_DRIVER", "sqlite")),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		SQLitePath:                 getEnv("SQLITE_PATH", "cakemarket.db"),
		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),

		AuthProvider: strings.ToLower(getEnv("AUTH_PROVIDER", "jwt")),
		JWTSecret:    getEnv("JWT_SECRET", "your-secret-key"),
		JWTIssuer:    getEnv("JWT_ISSUER", ""),
		JWKSURL:      getEnv("JWKS_URL", ""),

		BroadcastDriver:    strings.ToLower(getEnv("BROADCAST_DRIVER", "local")),
		NATSURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		WSHandshakeTimeout: time.Duration(getEnvAsInt64("WS_HANDSHAKE_TIMEOUT_SECONDS", 10)) * time.Second,
		WSAllowedOrigins:   getEnvAsList("WS_ALLOWED_ORIGINS", "*"),
		SendRate:           getEnvAsFloat64("CHAT_SEND_RATE", 5),
		SendBurst:          int(getEnvAsInt64("CHAT_SEND_BURST", 20)),
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
