package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends understood by STORE_BACKEND.
const (
	StoreBackendHub      = "hub"
	StoreBackendFS       = "fs"
	StoreBackendPostgres = "postgres"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	JWTSecret      string
	MasterPassword string
	TokenTTL       time.Duration
	AllowedOrigins []string

	StoreBackend        string
	HubBaseURL          string
	HubDatasetRepo      string
	HubToken            string
	HubRevision         string
	HubCommitsPerSecond float64
	StoragePath         string
	StorageBaseURL      string
	DatabaseURL         string

	EngineURL         string
	EngineToken       string
	EngineTimeout     time.Duration
	MaxConcurrentJobs int

	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	SMTPFromEmail string
	AdminEmail    string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg, err := LoadStoreConfig()
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MasterPassword == "" {
		return nil, fmt.Errorf("MASTER_PASSWORD is required")
	}
	return cfg, nil
}

// LoadStoreConfig is LoadConfig without the HTTP secrets, for tools that only
// touch the object store.
func LoadStoreConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	smtpUser := os.Getenv("SMTP_USER")
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           port,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		MasterPassword: os.Getenv("MASTER_PASSWORD"),
		TokenTTL:       time.Hour * time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24*7)),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:4200")),

		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreBackendHub)),
		HubBaseURL:          getEnv("HUB_BASE_URL", "https://huggingface.co"),
		HubDatasetRepo:      os.Getenv("HUB_DATASET_REPO"),
		HubToken:            os.Getenv("HUB_TOKEN"),
		HubRevision:         getEnv("HUB_REVISION", "main"),
		HubCommitsPerSecond: getEnvFloat("HUB_COMMITS_PER_SECOND", 1),
		StoragePath:         getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:      getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),

		EngineURL:         os.Getenv("ENGINE_URL"),
		EngineToken:       os.Getenv("ENGINE_TOKEN"),
		EngineTimeout:     time.Second * time.Duration(getEnvInt("ENGINE_TIMEOUT_SECONDS", 3600)),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),

		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUser:      smtpUser,
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromEmail: getEnv("SMTP_FROM_EMAIL", smtpUser),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.StoreBackend {
	case StoreBackendHub:
		if cfg.HubDatasetRepo == "" {
			return nil, fmt.Errorf("HUB_DATASET_REPO is required for the hub store backend")
		}
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store backend")
		}
	case StoreBackendFS:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}

	return cfg, nil
}

// SMTPConfigured reports whether outgoing mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
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

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitList(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
