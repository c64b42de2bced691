package main

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"pharmapos/backend/internal/auth"
	"pharmapos/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, StoreDriver: config.DriverSQLite})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigRejectsMemoryStoreInProduction(t *testing.T) {
	cfg := config.Config{AppEnv: "production", AuthSecret: strongSecret, StoreDriver: config.DriverMemory}
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected memory driver to be rejected in production")
	}
	cfg.AppEnv = "development"
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("memory driver should be fine outside production, got %v", err)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	repo, err := openStore(context.Background(), config.Config{StoreDriver: config.DriverMemory}, zap.NewNop())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer repo.Close()

	medicines, err := repo.ListMedicines(context.Background())
	if err != nil {
		t.Fatalf("list medicines: %v", err)
	}
	if len(medicines) == 0 {
		t.Fatalf("expected seeded medicines")
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pharma.db")
	repo, err := openStore(context.Background(), config.Config{StoreDriver: config.DriverSQLite, SQLitePath: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer repo.Close()

	admin, err := repo.GetUserByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("default admin missing: %v", err)
	}
	if !auth.VerifyPassword(admin.PasswordHash, "123") {
		t.Fatalf("default admin password does not verify")
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, err := openStore(context.Background(), config.Config{StoreDriver: "oracle"}, zap.NewNop()); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}
