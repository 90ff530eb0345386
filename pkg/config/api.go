package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	UploadMaxBytes     int64
	RateLimitGlobal    int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// IsProduction reports whether the service runs with production hardening.
// Outside production, internal error responses carry debug detail.
func (c APIConfig) IsProduction() bool {
	return c.Environment == "production"
}

// LoadAPIConfig constructs an APIConfig from environment variables.
// JWT_SECRET deliberately has no fallback: token signing without a
// configured secret is a fatal startup error, enforced in cmd/api.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":3000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://fontdrop:fontdrop@db:5432/fontdrop?sslmode=disable"),
		JWTSecret:          GetString("JWT_SECRET", ""),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_HOURS", 7*24)) * time.Hour,
		UploadMaxBytes:     int64(GetInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
		RateLimitGlobal:    GetInt("RATE_LIMIT_GLOBAL", 200),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
