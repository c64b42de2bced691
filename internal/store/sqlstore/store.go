// Package sqlstore is the relational store.Repository shared by the sqlite
// and postgres backends. Queries are written with '?' placeholders and
// rebound for the driver in use; everything else that differs between
// engines sits behind Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmapos/backend/internal/auth"
	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

type Dialect interface {
	Name() string
	// LockClause is appended to SELECTs that read rows about to be decremented.
	LockClause() string
	TxOptions() *sql.TxOptions
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
	IsConnectionError(err error) bool
	Migrate(ctx context.Context, db *sqlx.DB) error
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
}

var _ store.Repository = (*Store)(nil)

func New(db *sqlx.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logger.Named("store").With(zap.String("dialect", dialect.Name())),
		now:     time.Now,
	}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	if err := s.dialect.Migrate(ctx, s.db); err != nil {
		return s.classify(err)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (username, password, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`), domain.DefaultAdminUsername, auth.HashPassword(auth.DefaultAdminPassword), domain.RoleAdmin, timeArg(s.now()))
	if err != nil {
		return s.classify(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Warn("seeded default admin account; change its password",
			zap.String("username", domain.DefaultAdminUsername))
	}
	return nil
}

// withTx runs fn inside one transaction. Any error rolls the whole unit back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, s.dialect.TxOptions())
	if err != nil {
		return s.classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return s.classify(err)
	}
	if err := tx.Commit(); err != nil {
		return s.classify(err)
	}
	return nil
}

// classify maps driver failures onto the store error taxonomy.
func (s *Store) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case isTaxonomy(err):
		return err
	case s.isConnectionError(err):
		s.logger.Error("store connection failure", zap.Error(err))
		return store.ConnectionError(err)
	case s.dialect.IsForeignKeyViolation(err):
		return store.ErrReferentialConflict
	default:
		return err
	}
}

func (s *Store) isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if strings.Contains(err.Error(), "database is closed") {
		return true
	}
	return s.dialect.IsConnectionError(err)
}

func isTaxonomy(err error) bool {
	for _, target := range []error{
		store.ErrNotFound,
		store.ErrConnection,
		store.ErrDuplicateBarcode,
		store.ErrDuplicateUsername,
		store.ErrInsufficientStock,
		store.ErrReferentialConflict,
		store.ErrValidation,
		store.ErrProtectedAccount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	if err := s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, s.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) insertID(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (int64, error) {
	var id int64
	if err := tx.QueryRowxContext(ctx, tx.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) exec(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func likePattern(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}

// windowClause renders optional bounds on column. asDate selects date or
// timestamp formatting of the arguments.
func windowClause(column string, window domain.DateRange, asDate bool) (string, []any) {
	format := timeArg
	if asDate {
		format = dateArg
	}
	var parts []string
	var args []any
	if !window.From.IsZero() {
		parts = append(parts, column+" >= ?")
		args = append(args, format(window.From))
	}
	if !window.To.IsZero() {
		parts = append(parts, column+" < ?")
		args = append(args, format(window.To))
	}
	if len(parts) == 0 {
		return "1=1", nil
	}
	return strings.Join(parts, " AND "), args
}
