package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetenv clears key for the test and restores it afterwards, including
// values written by godotenv.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverSQLite || cfg.SQLitePath != "pharma_system.db" {
		t.Fatalf("expected sqlite default store, got %q at %q", cfg.StoreDriver, cfg.SQLitePath)
	}
	if cfg.DashboardCacheTTL != 30*time.Second {
		t.Fatalf("expected 30s dashboard ttl, got %s", cfg.DashboardCacheTTL)
	}
	if cfg.DefaultReorderThreshold != 10 || cfg.ExpiryHorizonDays != 90 {
		t.Fatalf("unexpected stock defaults: %+v", cfg)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
}

func TestLoadReadsEnvironmentAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9090\nREQUIRE_PURCHASE_EXPIRY=true\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	unsetenv(t, "PORT")
	unsetenv(t, "REQUIRE_PURCHASE_EXPIRY")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DASHBOARD_CACHE_TTL_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port from .env, got %s", cfg.Port)
	}
	if !cfg.RequirePurchaseExpiry {
		t.Fatalf("expected strict purchase expiry from .env")
	}
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %s", cfg.StoreDriver)
	}
	if cfg.DashboardCacheTTL != 5*time.Second {
		t.Fatalf("expected 5s ttl, got %s", cfg.DashboardCacheTTL)
	}
}

func TestLoadRejectsPostgresWithoutURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for postgres without DATABASE_URL")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "oracle")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
