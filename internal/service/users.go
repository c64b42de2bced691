package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"pharmapos/backend/internal/auth"
	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

// Authenticate checks a plain password against the stored credential.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (domain.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	return s.VerifyCredentials(ctx, username, auth.HashPassword(password))
}

// VerifyCredentials compares a SHA-256 hex digest with the stored credential
// and returns the account on success. Unknown users and wrong digests both
// yield ErrInvalidCredentials.
func (s *Service) VerifyCredentials(ctx context.Context, username string, passwordHash string) (domain.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if !auth.Verify(user.PasswordHash, passwordHash) {
		return domain.User{}, ErrInvalidCredentials
	}

	if s.upgradeHashes && !auth.IsUpgraded(user.PasswordHash) {
		upgraded, err := auth.Upgrade(user.PasswordHash)
		if err == nil {
			err = s.repo.UpdateUserPassword(ctx, user.Username, upgraded)
		}
		if err != nil {
			s.logger(ctx).Warn("password hash upgrade failed", zap.String("username", user.Username), zap.Error(err))
		} else {
			user.PasswordHash = upgraded
		}
	}
	return *user, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}
	if err := s.check(req); err != nil {
		return domain.User{}, err
	}
	role := req.Role
	if role == "" {
		role = domain.RolePharmacist
	}
	hash, err := s.credential(req.Password)
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.repo.CreateUser(ctx, domain.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return domain.User{}, err
	}
	s.invalidate(ctx)
	s.logger(ctx).Info("user created", zap.String("username", created.Username), zap.String("role", created.Role))
	return *created, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := requireAdmin(ctx); err != nil {
		return []domain.User{}, err
	}
	return emptyOnConnection(s.repo.ListUsers(ctx))
}

// ChangePassword is allowed for admins and for the account owner.
func (s *Service) ChangePassword(ctx context.Context, userID int64, req domain.PasswordChangeRequest) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != domain.RoleAdmin && actor.UserID != userID) {
		return ErrForbidden
	}
	if err := s.check(req); err != nil {
		return err
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	username := ""
	for _, u := range users {
		if u.ID == userID {
			username = u.Username
			break
		}
	}
	if username == "" {
		return store.ErrNotFound
	}

	hash, err := s.credential(req.Password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, username, hash); err != nil {
		return err
	}
	s.logger(ctx).Info("password changed", zap.String("username", username))
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) credential(password string) (string, error) {
	hash := auth.HashPassword(password)
	if !s.upgradeHashes {
		return hash, nil
	}
	return auth.Upgrade(hash)
}
