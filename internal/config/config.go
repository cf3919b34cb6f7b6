package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// minAuthSecretLength はBETTER_AUTH_SECRETの最小文字数。
const minAuthSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv string

	// Database
	DatabaseURL string

	// Auth
	AuthBaseURL      string // BETTER_AUTH_URL: JWTのiss/audおよびJWKSのベースURL
	AuthSecret       string // BETTER_AUTH_SECRET: 署名鍵の導出元
	JWKSURL          string
	JWKSFetchTimeout time.Duration
	JWTTTL           time.Duration

	// Session
	SessionMaxAge int

	// Rate Limit
	RateLimitGeneral int
	RateLimitSignIn  int

	// Worker
	SessionCleanupInterval time.Duration

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CSRF
	CSRFEnabled bool

	// CORS（カンマ区切りで複数オリジンを指定可）
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// IsProduction は本番環境で動作しているかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AuthBaseURL = strings.TrimRight(os.Getenv("BETTER_AUTH_URL"), "/")
	if cfg.AuthBaseURL == "" {
		missing = append(missing, "BETTER_AUTH_URL")
	}

	cfg.AuthSecret = os.Getenv("BETTER_AUTH_SECRET")
	if cfg.AuthSecret == "" {
		missing = append(missing, "BETTER_AUTH_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.AuthSecret) < minAuthSecretLength {
		return nil, fmt.Errorf("BETTER_AUTH_SECRET must be at least %d characters", minAuthSecretLength)
	}

	cfg.AppEnv = getEnvString("APP_ENV", EnvDevelopment)
	switch cfg.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return nil, fmt.Errorf("invalid APP_ENV: %q", cfg.AppEnv)
	}

	// Optional fields with defaults
	cfg.JWKSURL = getEnvString("JWKS_URL", cfg.AuthBaseURL+"/jwks")
	cfg.JWKSFetchTimeout = getEnvDuration("JWKS_FETCH_TIMEOUT", 5*time.Second)
	cfg.JWTTTL = getEnvDuration("JWT_TTL", 15*time.Minute)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 10)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = cfg.IsProduction() || strings.HasPrefix(cfg.AuthBaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", cfg.IsProduction())
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
