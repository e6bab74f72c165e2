package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	PublicBaseURL    string
	StoreDriver      string
	DatabaseURL      string
	DBMaxConns       int32
	DBMinConns       int32
	AutoMigrate      bool
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	StorageDriver        string
	StoragePath          string
	StorageBaseURL       string
	StorageSigningSecret string
	S3Bucket             string
	AWSRegion            string
	AWSEndpointURL       string
	SignedURLTTL         time.Duration

	FreepikAPIKey  string
	FreepikBaseURL string
	FreepikModel   string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string

	StripeSecretKey     string
	StripeWebhookSecret string
	AllowTestMode       bool
	PriceUSD            int64
	PriceEUR            int64
	PriceGBP            int64

	GeoIPDBPath       string
	OperatorJWTSecret string
	MailFrom          string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxConns:       int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBMinConns:       int32(getEnvInt("DB_MIN_CONNS", 1)),
		AutoMigrate:      getEnvBool("AUTO_MIGRATE", false),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 660)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", "fs")),
		StoragePath:          getEnv("STORAGE_PATH", "./storage"),
		StorageSigningSecret: os.Getenv("STORAGE_SIGNING_SECRET"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:       os.Getenv("AWS_ENDPOINT_URL"),
		SignedURLTTL:         time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 3600)),

		FreepikAPIKey:  os.Getenv("FREEPIK_API_KEY"),
		FreepikBaseURL: getEnv("FREEPIK_BASE_URL", "https://api.freepik.com/v1"),
		FreepikModel:   getEnv("FREEPIK_MODEL", "kling-v2-1-pro"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AllowTestMode:       getEnvBool("ALLOW_TEST_MODE", false),
		PriceUSD:            int64(getEnvInt("ORDER_PRICE_USD", 1999)),
		PriceEUR:            int64(getEnvInt("ORDER_PRICE_EUR", 1899)),
		PriceGBP:            int64(getEnvInt("ORDER_PRICE_GBP", 1599)),

		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		OperatorJWTSecret: os.Getenv("OPERATOR_JWT_SECRET"),
		MailFrom:          getEnv("MAIL_FROM", "Camclip <orders@camclip.local>"),
	}
	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", strings.TrimRight(cfg.PublicBaseURL, "/")+"/files")

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.DBMaxConns < 1 || cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("invalid pool bounds DB_MIN_CONNS=%d DB_MAX_CONNS=%d", cfg.DBMinConns, cfg.DBMaxConns)
	}

	switch cfg.StorageDriver {
	case "fs":
		if cfg.StorageSigningSecret == "" {
			if cfg.AppEnv != "development" {
				return nil, fmt.Errorf("STORAGE_SIGNING_SECRET is required outside development")
			}
			cfg.StorageSigningSecret = "development-only-signing-secret"
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if _, err := url.Parse(cfg.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("PUBLIC_BASE_URL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
