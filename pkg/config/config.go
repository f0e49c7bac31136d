// Package config loads the gateway's configuration from environment
// variables, following the same getEnv/fallback idiom the rest of the
// stack uses for runtime wiring.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration object, built once at startup and
// passed down through the composition root.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Jobx     JobxConfig
	Notifx   NotifxConfig
}

type ServerConfig struct {
	Port         string
	CORSOrigins  []string
	Debug        bool
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Address() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// GatewayConfig holds the settings unique to the gateway domain: JWT
// signing, OAuth-blob encryption, downstream service base URLs, and the
// default rate limit applied when an application has none configured.
type GatewayConfig struct {
	JWTSecret            string
	JWTIssuer            string
	AccessTokenTTL       time.Duration
	OAuthEncryptionKey   string
	DefaultRateLimit     int
	RateLimitWindow      time.Duration
	DownstreamTimeout    time.Duration
	DownstreamServices   map[string]string
	AppCacheTTL          time.Duration
	AuditQueueSize       int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8000"),
			CORSOrigins: getEnvStringSlice("CORS_ORIGINS", []string{"*"}),
			Debug:       getEnvBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "gateway"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			JWTSecret:          getEnv("GATEWAY_JWT_SECRET", "dev-secret-change-me"),
			JWTIssuer:          getEnv("GATEWAY_JWT_ISSUER", "unigate-gateway"),
			AccessTokenTTL:     getEnvDuration("GATEWAY_ACCESS_TOKEN_TTL", 15*time.Minute),
			OAuthEncryptionKey: getEnv("GATEWAY_OAUTH_ENCRYPTION_KEY", "dev-oauth-key-change-me"),
			DefaultRateLimit:   getEnvInt("GATEWAY_DEFAULT_RATE_LIMIT", 60),
			RateLimitWindow:    getEnvDuration("GATEWAY_RATE_LIMIT_WINDOW", 60*time.Second),
			DownstreamTimeout:  getEnvDuration("GATEWAY_DOWNSTREAM_TIMEOUT", 10*time.Second),
			DownstreamServices: map[string]string{
				"auth":       getEnv("GATEWAY_AUTH_SERVICE_URL", "http://localhost:8001"),
				"sso":        getEnv("GATEWAY_SSO_SERVICE_URL", "http://localhost:8002"),
				"user":       getEnv("GATEWAY_USER_SERVICE_URL", "http://localhost:8003"),
				"permission": getEnv("GATEWAY_PERMISSION_SERVICE_URL", "http://localhost:8004"),
			},
			AppCacheTTL:    getEnvDuration("GATEWAY_APP_CACHE_TTL", 5*time.Minute),
			AuditQueueSize: getEnvInt("GATEWAY_AUDIT_QUEUE_SIZE", 1024),
		},
		Jobx:   loadJobxConfig(),
		Notifx: loadNotifxConfig(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
