package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	AppEnv        string
	Port          string
	AllowedOrigin string

	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthSecret            string
	AccessTokenTTLMinutes int
	UpgradePasswordHashes bool

	LogLevel  string
	LogFormat string

	RequirePurchaseExpiry   bool
	DashboardCacheTTL       time.Duration
	DefaultReorderThreshold int
	ExpiryHorizonDays       int
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"PORT":                        "8080",
	"ALLOWED_ORIGIN":              "http://127.0.0.1:3000",
	"STORE_DRIVER":                DriverSQLite,
	"SQLITE_PATH":                 "pharma_system.db",
	"REDIS_DB":                    0,
	"ACCESS_TOKEN_TTL_MINUTES":    480,
	"UPGRADE_PASSWORD_HASHES":     false,
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "console",
	"REQUIRE_PURCHASE_EXPIRY":     false,
	"DASHBOARD_CACHE_TTL_SECONDS": 30,
	"DEFAULT_REORDER_THRESHOLD":   10,
	"EXPIRY_HORIZON_DAYS":         90,
}

// envKeys without a default still have to be bound for AutomaticEnv lookups.
var envKeys = []string{"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "AUTH_SECRET"}

// Load reads an optional .env file, then the process environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		AppEnv:                  v.GetString("APP_ENV"),
		Port:                    v.GetString("PORT"),
		AllowedOrigin:           v.GetString("ALLOWED_ORIGIN"),
		StoreDriver:             strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		SQLitePath:              v.GetString("SQLITE_PATH"),
		DatabaseURL:             strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisAddr:               strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisDB:                 v.GetInt("REDIS_DB"),
		AuthSecret:              strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes:   v.GetInt("ACCESS_TOKEN_TTL_MINUTES"),
		UpgradePasswordHashes:   v.GetBool("UPGRADE_PASSWORD_HASHES"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		LogFormat:               v.GetString("LOG_FORMAT"),
		RequirePurchaseExpiry:   v.GetBool("REQUIRE_PURCHASE_EXPIRY"),
		DashboardCacheTTL:       time.Duration(v.GetInt("DASHBOARD_CACHE_TTL_SECONDS")) * time.Second,
		DefaultReorderThreshold: v.GetInt("DEFAULT_REORDER_THRESHOLD"),
		ExpiryHorizonDays:       v.GetInt("EXPIRY_HORIZON_DAYS"),
	}

	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.DashboardCacheTTL <= 0 {
		cfg.DashboardCacheTTL = 30 * time.Second
	}
	if cfg.DefaultReorderThreshold < 0 {
		cfg.DefaultReorderThreshold = 10
	}
	if cfg.ExpiryHorizonDays < 1 {
		cfg.ExpiryHorizonDays = 90
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
