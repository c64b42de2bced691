package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

const userColumns = `id, username, password, role, created_at`

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || user.PasswordHash == "" {
		return nil, store.ErrValidation
	}
	if user.Role == "" {
		user.Role = domain.RolePharmacist
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Second)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.insertID(ctx, tx, `
			INSERT INTO users (username, password, role, created_at)
			VALUES (?, ?, ?, ?)
		`, user.Username, user.PasswordHash, user.Role, timeArg(user.CreatedAt))
		if err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return store.ErrDuplicateUsername
			}
			return err
		}
		user.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username); err != nil {
		return nil, s.classify(err)
	}
	user := row.toDomain()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.selectAll(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	if passwordHash == "" {
		return store.ErrValidation
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.exec(ctx, tx, `UPDATE users SET password = ? WHERE username = ?`, passwordHash, username)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// DeleteUser refuses the default admin account and users that recorded sales.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var username string
		if err := tx.GetContext(ctx, &username, tx.Rebind(`SELECT username FROM users WHERE id = ?`), id); err != nil {
			return err
		}
		if username == domain.DefaultAdminUsername {
			return store.ErrProtectedAccount
		}

		refs, err := s.count(ctx, tx, `SELECT COUNT(*) FROM sales WHERE user_id = ?`, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return store.ErrReferentialConflict
		}
		_, err = s.exec(ctx, tx, `DELETE FROM users WHERE id = ?`, id)
		return err
	})
}
