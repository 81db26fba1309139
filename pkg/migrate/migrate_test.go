package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/stretchr/testify/require"
)

func TestValidateTreeAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateTree("migrations"))
	for _, dir := range []string{"migrations/sqlite", "migrations/postgres"} {
		require.NoError(t, ValidateDir(dir), dir)
	}
}

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestValidateDirRejectsNonAdditiveDDL(t *testing.T) {
	cases := map[string]string{
		"bare create":  "-- +goose Up\nCREATE TABLE bins (id INTEGER);\n-- +goose Down\nDROP TABLE IF EXISTS bins;\n",
		"bare index":   "-- +goose Up\nCREATE UNIQUE INDEX idx_bins ON bins(id);\n-- +goose Down\nDROP INDEX IF EXISTS idx_bins;\n",
		"bare drop":    "-- +goose Up\nCREATE TABLE IF NOT EXISTS bins (id INTEGER);\n-- +goose Down\nDROP TABLE bins;\n",
		"down first":   "-- +goose Down\nDROP TABLE IF EXISTS bins;\n-- +goose Up\nCREATE TABLE IF NOT EXISTS bins (id INTEGER);\n",
		"missing down": "-- +goose Up\nCREATE TABLE IF NOT EXISTS bins (id INTEGER);\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeMigration(t, dir, "20260501000000_create_bins.sql", body)
			require.Error(t, ValidateDir(dir))
		})
	}

	dir := t.TempDir()
	writeMigration(t, dir, "20260501000000_create_bins.sql",
		"-- +goose Up\nCREATE TABLE IF NOT EXISTS bins (id INTEGER);\nCREATE OR REPLACE VIEW v_bins AS SELECT id FROM bins;\n-- +goose Down\nDROP VIEW IF EXISTS v_bins;\nDROP TABLE IF EXISTS bins;\n")
	require.NoError(t, ValidateDir(dir))
}

func TestValidateTreeRequiresMatchingDialects(t *testing.T) {
	root := t.TempDir()
	body := "-- +goose Up\nCREATE TABLE IF NOT EXISTS bins (id INTEGER);\n-- +goose Down\nDROP TABLE IF EXISTS bins;\n"
	writeMigration(t, filepath.Join(root, "sqlite"), "20260501000000_create_bins.sql", body)
	writeMigration(t, filepath.Join(root, "postgres"), "20260501000000_create_bins.sql", body)
	require.NoError(t, ValidateTree(root))

	writeMigration(t, filepath.Join(root, "sqlite"), "20260502000000_create_trays.sql", body)
	err := ValidateTree(root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres lacks 20260502000000_create_trays.sql")
}

func TestDialectsShipTheSameVersions(t *testing.T) {
	versions := func(d db.Dialect) []string {
		fsys, err := Migrations(d)
		require.NoError(t, err)
		names, err := fs.Glob(fsys, "*.sql")
		require.NoError(t, err)
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, strings.SplitN(n, "_", 2)[0])
		}
		return out
	}
	require.Equal(t, versions(db.DialectSQLite), versions(db.DialectPostgres))
}

func TestMigrationsDeclareCoreObjects(t *testing.T) {
	fsys, err := Migrations(db.DialectSQLite)
	require.NoError(t, err)

	var all strings.Builder
	names, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	for _, n := range names {
		b, err := fs.ReadFile(fsys, n)
		require.NoError(t, err)
		all.Write(b)
	}
	txt := all.String()

	for _, obj := range []string{
		"parts", "locations", "stock_lines", "projects", "project_bom_lines",
		"allocations", "ledger_documents", "ledger_lines", "inventory_txns",
		"inventory_txn_lines", "project_resources", "outbox_events",
	} {
		require.Contains(t, txt, "CREATE TABLE IF NOT EXISTS "+obj+" (", obj)
	}
	for _, view := range []string{"v_material_status", "v_allocation_detail", "v_project_overview"} {
		require.Contains(t, txt, "CREATE VIEW IF NOT EXISTS "+view, view)
	}
	require.Contains(t, txt, "CHECK (qty >= 0)")
	require.Contains(t, txt, "UNIQUE (part_id, location)")
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "schema.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQLDB()
	require.NoError(t, err)

	first, err := EnsureSchema(ctx, sqlDB, db.DialectSQLite)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := EnsureSchema(ctx, sqlDB, db.DialectSQLite)
	require.NoError(t, err)
	require.Empty(t, second)

	var count int64
	require.NoError(t, client.DB().Raw("SELECT COUNT(*) FROM v_material_status").Scan(&count).Error)
	require.Zero(t, count)
}

func TestEnsureSchemaRejectsUnknownDialect(t *testing.T) {
	_, err := EnsureSchema(context.Background(), nil, db.Dialect("mysql"))
	require.Error(t, err)
}

func TestCreateSQLMigrationWritesEveryDialect(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	paths, err := createSQLMigration(root, "Add Part Tags!", now)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "sqlite", "20260501093000_add_part_tags.sql"),
		filepath.Join(root, "postgres", "20260501093000_add_part_tags.sql"),
	}, paths)
	require.NoError(t, ValidateTree(root))

	pg, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	require.Contains(t, string(pg), "CREATE TABLE IF NOT EXISTS part_tags (")
	require.Contains(t, string(pg), "BIGSERIAL PRIMARY KEY")

	_, err = createSQLMigration(root, "add part tags", now)
	require.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(root, "!!!")
	require.Error(t, err)
}
