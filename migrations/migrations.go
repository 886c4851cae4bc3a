// Package migrations embeds the goose SQL migrations of every supported database.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed clickhouse/*.sql sqlite/*.sql
var FS embed.FS

// Dialects maps a storage driver name to its goose dialect
var Dialects = map[string]string{
	"clickhouse": "clickhouse",
	"sqlite":     "sqlite3",
}

// Setup points goose at the embedded migrations of driver and returns the migrations directory
func Setup(driver string) (string, error) {
	dialect, ok := Dialects[driver]
	if !ok {
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}

	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("failed to set dialect: %w", err)
	}
	return driver, nil
}

// Up applies all pending migrations of driver to db
func Up(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := Setup(driver)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// UpStatements returns the "Up" statements of every migration of driver in order.
// It is used where goose cannot keep its version table, e.g. throwaway test databases.
func UpStatements(driver string) ([]string, error) {
	files, err := fs.Glob(FS, driver+"/*.sql")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}

	var statements []string
	for _, name := range files {
		data, err := FS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		up := string(data)
		if i := strings.Index(up, "-- +goose Down"); i >= 0 {
			up = up[:i]
		}
		up = strings.Replace(up, "-- +goose Up", "", 1)
		for _, stmt := range strings.Split(up, ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}
	return statements, nil
}
