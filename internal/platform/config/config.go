package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the environment. Optional
// backends (Postgres, Redis, Kafka, MinIO) fall back to in-process
// implementations when their settings are empty, so a bare `go run` works.
type Config struct {
	Addr string

	JWTSigningKey string
	TokenTTL      time.Duration

	MaxBodyBytes       int64
	MaxAvatarBodyBytes int64

	PostgresDSN string
	RedisURL    string

	KafkaBrokers    string
	KafkaAuditTopic string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

const (
	defaultTokenTTL     = 2 * time.Hour
	defaultMaxBody      = 1 << 20 // 1 MiB for JSON payloads
	defaultMaxAvatar    = 8 << 20 // 8 MiB, matches the upload limit clients rely on
	defaultAuditTopic   = "registry.audit"
	defaultListenerAddr = ":8080"
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("RENAVAM_ADDR")
	if addr == "" {
		addr = defaultListenerAddr
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	tokenTTL := defaultTokenTTL
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			tokenTTL = parsed
		}
	}

	maxBody := int64(defaultMaxBody)
	if raw := os.Getenv("MAX_BODY_BYTES"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			maxBody = parsed
		}
	}

	auditTopic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = defaultAuditTopic
	}

	return Config{
		Addr:               addr,
		JWTSigningKey:      jwtSigningKey,
		TokenTTL:           tokenTTL,
		MaxBodyBytes:       maxBody,
		MaxAvatarBodyBytes: defaultMaxAvatar,
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaAuditTopic:    auditTopic,
		MinioEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        os.Getenv("MINIO_BUCKET"),
		MinioUseSSL:        os.Getenv("MINIO_USE_SSL") == "true",
	}
}
