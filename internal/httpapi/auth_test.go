package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/service"
)

type authenticatorStub struct {
	user domain.User
	err  error
}

func (s authenticatorStub) Authenticate(_ context.Context, _ string, _ string) (domain.User, error) {
	return s.user, s.err
}

func TestAuthManagerTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager(testSecret, time.Hour, authenticatorStub{
		user: domain.User{ID: 7, Username: "rana", Role: domain.RolePharmacist},
	})

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " rana ", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != domain.RolePharmacist {
		t.Fatalf("expected pharmacist role, got %s", resp.Role)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != 7 || actor.Username != "rana" || actor.Role != domain.RolePharmacist {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAuthManagerPropagatesCredentialFailure(t *testing.T) {
	manager := NewAuthManager(testSecret, time.Hour, authenticatorStub{err: service.ErrInvalidCredentials})

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "x"}); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	stub := authenticatorStub{user: domain.User{ID: 1, Username: "admin", Role: domain.RoleAdmin}}
	manager := NewAuthManager(testSecret, time.Minute, stub)
	issued := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issued }

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	manager.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := manager.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	other := NewAuthManager("another-secret-key-with-32-characters", time.Hour, stub)
	other.now = func() time.Time { return issued }
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestAttemptLimiterWindow(t *testing.T) {
	limiter := newAttemptLimiter(2, 50*time.Millisecond)

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatalf("expected first two attempts to pass")
	}
	if limiter.Allow("a") {
		t.Fatalf("expected third attempt to be limited")
	}
	if !limiter.Allow("b") {
		t.Fatalf("expected independent key to pass")
	}
	time.Sleep(60 * time.Millisecond)
	if !limiter.Allow("a") {
		t.Fatalf("expected attempt after window to pass")
	}
}
