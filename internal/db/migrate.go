package db

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"

	"wallet/migrations"

	"github.com/jmoiron/sqlx"
)

const downMarker = "-- +migrate Down"

// Migrate applies every embedded migration for the database's dialect that
// has not been recorded in schema_migrations yet. It returns the applied names.
func Migrate(ctx context.Context, db *sqlx.DB) ([]string, error) {
	dialect := DialectFor(db.DriverName())
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	files, err := fs.Glob(migrations.FS, path.Join(dialect.Migrations, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var applied []string
	for _, file := range files {
		filename := path.Base(file)
		var count int
		if err := db.GetContext(ctx, &count, dialect.Rebind(`SELECT COUNT(1) FROM schema_migrations WHERE filename = ?`), filename); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := applyFile(ctx, db, dialect, file, filename); err != nil {
			return applied, fmt.Errorf("apply %s: %w", filename, err)
		}
		log.Printf("migrate: applied %s", filename)
		applied = append(applied, filename)
	}
	return applied, nil
}

func applyFile(ctx context.Context, db *sqlx.DB, dialect Dialect, file, filename string) error {
	content, err := fs.ReadFile(migrations.FS, file)
	if err != nil {
		return err
	}
	up, _, _ := strings.Cut(string(content), downMarker)
	return WithTx(ctx, db, func(ctx context.Context, tx *sqlx.Tx) error {
		if strings.TrimSpace(up) != "" {
			if _, err := tx.ExecContext(ctx, up); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, dialect.Rebind(`INSERT INTO schema_migrations (filename) VALUES (?)`), filename)
		return err
	})
}
