// Package sqlite opens the embedded single-file store used by a standalone
// pharmacy terminal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pharmapos/backend/internal/store/sqlstore"
)

const driverName = "sqlite"

// New opens (creating when missing) the database file at path. The pool is
// capped at one connection so every transaction runs serialized.
func New(ctx context.Context, path string, logger *zap.Logger) (*sqlstore.Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := DSN(path)

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return sqlstore.New(db, Dialect{}, logger), nil
}

// uriEscaper covers the characters SQLite treats specially in a file: URI path.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// DSN builds the file: URI for path with foreign keys and a busy timeout enabled.
func DSN(path string) string {
	return "file:" + uriEscaper.Replace(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

type Dialect struct{}

func (Dialect) Name() string { return driverName }

// LockClause is empty: the single pooled connection already serializes writers.
func (Dialect) LockClause() string { return "" }

func (Dialect) TxOptions() *sql.TxOptions { return nil }

func (Dialect) IsUniqueViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func (Dialect) IsConnectionError(err error) bool {
	code, ok := errorCode(err)
	if !ok {
		return false
	}
	switch code & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_FULL:
		return true
	}
	return false
}

func errorCode(err error) (int, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0, false
	}
	return sqliteErr.Code(), true
}

func (Dialect) Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'pharmacist',
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT,
		company_name TEXT,
		balance REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		notes TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		barcode TEXT UNIQUE,
		name TEXT NOT NULL,
		active_ingredient TEXT,
		description TEXT,
		buy_price REAL NOT NULL DEFAULT 0,
		sell_price REAL NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		expiry_date TEXT,
		supplier_id INTEGER REFERENCES suppliers(id),
		min_stock_alert INTEGER NOT NULL DEFAULT 10
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		batch_number TEXT,
		expiry_date TEXT NOT NULL,
		buy_price REAL NOT NULL DEFAULT 0,
		sell_price REAL NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_medicine_expiry ON batches (medicine_id, expiry_date, id)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users(id),
		customer_id INTEGER REFERENCES customers(id),
		doctor_name TEXT,
		total_amount REAL NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		medicine_id INTEGER NOT NULL REFERENCES medicines(id),
		batch_id INTEGER NOT NULL REFERENCES batches(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price REAL NOT NULL,
		line_total REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id INTEGER NOT NULL REFERENCES suppliers(id),
		invoice_number TEXT,
		invoice_date TEXT NOT NULL,
		total_amount REAL NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER NOT NULL REFERENCES purchase_invoices(id),
		medicine_id INTEGER NOT NULL REFERENCES medicines(id),
		batch_id INTEGER NOT NULL REFERENCES batches(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_cost REAL NOT NULL,
		total_cost REAL NOT NULL
	)`,
}
