package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the differences between the supported ledger backends.
type Dialect struct {
	Name       string
	BindType   int
	RowLocks   bool
	Like       string
	Migrations string
}

var (
	Postgres = Dialect{Name: "postgres", BindType: sqlx.DOLLAR, RowLocks: true, Like: "ILIKE", Migrations: "postgres"}
	SQLite   = Dialect{Name: "sqlite3", BindType: sqlx.QUESTION, RowLocks: false, Like: "LIKE", Migrations: "sqlite"}
)

func DialectFor(driverName string) Dialect {
	if driverName == SQLite.Name {
		return SQLite
	}
	return Postgres
}

// Rebind converts a query written with ? placeholders to the dialect's style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.BindType, query)
}

// LockClause is appended to SELECTs that must hold the row until commit.
// Backends without row locks get a plain read.
func (d Dialect) LockClause() string {
	if d.RowLocks {
		return " FOR UPDATE"
	}
	return ""
}

type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

type TxRunner interface {
	WithTx(ctx context.Context, fn TxFunc) error
}

type SQLXTxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) SQLXTxRunner {
	return SQLXTxRunner{db: db}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, r.db, fn)
}

// Connect opens the ledger store named by databaseURL. postgres:// and
// postgresql:// URLs use lib/pq; sqlite:// and file: URLs use go-sqlite3.
func Connect(databaseURL string) (*sqlx.DB, error) {
	driverName, dsn := driverFor(databaseURL)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if driverName == SQLite.Name {
		// single writer; see DESIGN.md on the missing row locks
		db.SetMaxOpenConns(1)
		return db, nil
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func driverFor(databaseURL string) (string, string) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return SQLite.Name, sqliteDSN("file:" + strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "file:"):
		return SQLite.Name, sqliteDSN(databaseURL)
	default:
		return Postgres.Name, databaseURL
	}
}

func sqliteDSN(dsn string) string {
	params := []string{"_foreign_keys=1", "_busy_timeout=5000", "_txlock=immediate"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

type txKey struct{}

type txScope struct {
	tx    *sqlx.Tx
	depth int
}

// WithTx runs fn atomically. When ctx already carries a transaction opened by
// WithTx, fn runs inside a savepoint of that transaction instead, so callers
// can compose without knowing which case applies. Nothing is retried.
func WithTx(ctx context.Context, db *sqlx.DB, fn TxFunc) error {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		return withSavepoint(ctx, scope, fn)
	}
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return err
	}
	scope := &txScope{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, scope), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func withSavepoint(ctx context.Context, scope *txScope, fn TxFunc) error {
	scope.depth++
	name := fmt.Sprintf("sp_%d", scope.depth)
	defer func() { scope.depth-- }()
	if _, err := scope.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err := fn(ctx, scope.tx); err != nil {
		if _, rbErr := scope.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		_, _ = scope.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}
	_, err := scope.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txScope)
	return ok
}

// IsLockConflict reports deadlock and serialization failures from PostgreSQL.
func IsLockConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// IsUniqueViolation reports a unique constraint failure on either backend.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
