// Package dbtest opens throwaway SQLite ledgers for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/migrate"
)

// Open returns a migrated client backed by a file in t.TempDir().
func Open(t testing.TB) *db.Client {
	t.Helper()

	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver:      config.DBDriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "labstock.db"),
		LockTimeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQLDB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if _, err := migrate.EnsureSchema(ctx, sqlDB, client.Dialect()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return client
}
