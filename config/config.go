package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// R2Config holds Cloudflare R2 credentials used for club logos.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL        string
	JWTSecretKey       string
	JWTExpiration      time.Duration
	ServerPort         int
	RedisURL           string
	BracketCacheTTL    time.Duration
	CORSAllowedOrigins []string
	LogLevel           string

	// R2 is nil when logo upload is disabled.
	R2 *R2Config
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intFromEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	expireHours, err := intFromEnv("JWT_EXPIRE_HOURS", 24)
	if err != nil {
		return nil, err
	}
	if expireHours <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRE_HOURS must be positive, got %d", expireHours)
	}

	cacheTTL, err := intFromEnv("BRACKET_CACHE_TTL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	if cacheTTL < 0 {
		return nil, fmt.Errorf("BRACKET_CACHE_TTL_SECONDS must not be negative, got %d", cacheTTL)
	}

	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}

	r2, err := loadR2()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		JWTSecretKey:       jwtKey,
		JWTExpiration:      time.Duration(expireHours) * time.Hour,
		ServerPort:         port,
		RedisURL:           os.Getenv("REDIS_URL"),
		BracketCacheTTL:    time.Duration(cacheTTL) * time.Second,
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS"), []string{"*"}),
		LogLevel:           logLevel,
		R2:                 r2,
	}

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func splitList(raw string, fallback []string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

var errPartialR2 = errors.New("R2 storage is partially configured: set all of R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_BUCKET_NAME, R2_PUBLIC_BASE_URL or none")

// Логотипы клубов опциональны: либо все R2_* заданы, либо ни одной.
func loadR2() (*R2Config, error) {
	r2 := R2Config{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	values := []string{r2.AccountID, r2.AccessKeyID, r2.SecretAccessKey, r2.BucketName, r2.PublicBaseURL}

	set := 0
	for _, v := range values {
		if v != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case len(values):
		return &r2, nil
	default:
		return nil, errPartialR2
	}
}
