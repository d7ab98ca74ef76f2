package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageLocal    = "local"
	StorageR2       = "r2"
	StorageSupabase = "supabase"
)

type Config struct {
	Environment     string
	AppName         string
	Port            string
	LogLevel        slog.Level
	SQLitePath      string
	MigrationsPath  string
	SeedDefaultData bool
	AdminToken      string

	DefaultProxy    string
	DefaultSource   string
	ProxyConfigPath string
	ProfilesPath    string
	Proxies         map[string]ProxySettings

	HTTPTimeout         time.Duration
	ChapterDelay        time.Duration
	ExtractMaxAttempts  int
	RehostRatePerSecond float64
	RehostCovers        bool

	Storage    StorageConfig
	WebhookURL string
}

type StorageConfig struct {
	Driver        string
	LocalDir      string
	PublicBaseURL string

	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:         getEnv("APP_ENV", "development"),
		AppName:             getEnv("APP_NAME", "havencomics"),
		Port:                getEnv("APP_PORT", "8080"),
		SQLitePath:          getEnv("SQLITE_PATH", "./data/app.sqlite"),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "./migrations"),
		SeedDefaultData:     getEnvAsBool("SEED_DEFAULT_DATA", true),
		AdminToken:          strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		DefaultProxy:        getEnv("DEFAULT_PROXY", "scraperapi"),
		DefaultSource:       getEnv("DEFAULT_SOURCE", "plumacomics"),
		ProxyConfigPath:     getEnv("PROXY_CONFIG_PATH", "./config/proxies.yaml"),
		ProfilesPath:        getEnv("PROFILES_PATH", "./config/profiles"),
		HTTPTimeout:         time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 60)) * time.Second,
		ChapterDelay:        time.Duration(getEnvAsInt("CHAPTER_DELAY_MS", 1000)) * time.Millisecond,
		ExtractMaxAttempts:  getEnvAsInt("EXTRACT_MAX_ATTEMPTS", 0),
		RehostRatePerSecond: getEnvAsFloat("REHOST_RATE_PER_SECOND", 4),
		RehostCovers:        getEnvAsBool("REHOST_COVERS", true),
		WebhookURL:          strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		Storage: StorageConfig{
			Driver:             strings.ToLower(getEnv("STORAGE_DRIVER", StorageLocal)),
			LocalDir:           getEnv("STORAGE_LOCAL_DIR", "./data/media"),
			PublicBaseURL:      strings.TrimRight(os.Getenv("STORAGE_PUBLIC_BASE_URL"), "/"),
			R2Endpoint:         os.Getenv("R2_ENDPOINT"),
			R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
			R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
			R2Bucket:           getEnv("R2_BUCKET_NAME", "manga-content"),
			SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			SupabaseBucket:     getEnv("SUPABASE_BUCKET", "manga-content"),
		},
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	if cfg.ChapterDelay < 0 {
		cfg.ChapterDelay = 0
	}
	if cfg.ExtractMaxAttempts < 0 {
		cfg.ExtractMaxAttempts = 0
	}
	if cfg.RehostRatePerSecond <= 0 {
		cfg.RehostRatePerSecond = 4
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "INFO"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	proxies, err := LoadProxyFile(cfg.ProxyConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Proxies = mergeProxyEnv(proxies)

	if err := cfg.Storage.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (s StorageConfig) validate() error {
	switch s.Driver {
	case StorageLocal:
		return nil
	case StorageR2:
		if s.R2Endpoint == "" || s.R2AccessKeyID == "" || s.R2SecretAccessKey == "" {
			return fmt.Errorf("STORAGE_DRIVER=r2 requires R2_ENDPOINT, R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY")
		}
		return nil
	case StorageSupabase:
		if s.SupabaseURL == "" || s.SupabaseServiceKey == "" {
			return fmt.Errorf("STORAGE_DRIVER=supabase requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
		return nil
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q, expected local|r2|supabase", s.Driver)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q, expected DEBUG|INFO|WARN|ERROR", raw)
	}
}

func getEnv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
