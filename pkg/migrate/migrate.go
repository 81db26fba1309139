package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strconv"

	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/pressly/goose/v3"
)

const baseDir = "pkg/migrate/migrations"

// DefaultRoot is the on-disk directory holding one subdirectory per dialect.
func DefaultRoot() string {
	return baseDir
}

// DefaultDir returns the on-disk migration directory for the dialect.
func DefaultDir(dialect db.Dialect) string {
	return path.Join(baseDir, string(dialect))
}

func gooseDialect(dialect db.Dialect) (goose.Dialect, string, error) {
	switch dialect {
	case db.DialectSQLite:
		return goose.DialectSQLite3, "sqlite3", nil
	case db.DialectPostgres:
		return goose.DialectPostgres, "postgres", nil
	default:
		return "", "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// EnsureSchema applies every embedded migration that has not run yet. It is
// safe to call on every startup.
func EnsureSchema(ctx context.Context, sqlDB *sql.DB, dialect db.Dialect) ([]*goose.MigrationResult, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("db is required")
	}
	gd, _, err := gooseDialect(dialect)
	if err != nil {
		return nil, err
	}
	fsys, err := Migrations(dialect)
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(gd, sqlDB, fsys, goose.WithAllowOutofOrder(true))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// Run executes a standard goose command against an on-disk migration dir.
func Run(ctx context.Context, sqlDB *sql.DB, dialect db.Dialect, dir string, command string, args ...string) error {
	if sqlDB == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	_, name, err := gooseDialect(dialect)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(name); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, sqlDB, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, sqlDB *sql.DB, dialect db.Dialect, dir string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	_, name, err := gooseDialect(dialect)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(name); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil

	case current < target:
		if err := goose.UpToContext(ctx, sqlDB, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil

	default:
		if err := goose.DownToContext(ctx, sqlDB, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}
