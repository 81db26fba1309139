package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/db"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// idColumn is the surrogate key spelling each dialect uses in the schema.
var idColumn = map[db.Dialect]string{
	db.DialectSQLite:   "INTEGER PRIMARY KEY AUTOINCREMENT",
	db.DialectPostgres: "BIGSERIAL PRIMARY KEY",
}

var timestampColumn = map[db.Dialect]string{
	db.DialectSQLite:   "DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP",
	db.DialectPostgres: "TIMESTAMPTZ NOT NULL DEFAULT now()",
}

// CreateSQLMigration writes one goose file per dialect under root, all with
// the same version:
//
//	<root>/<dialect>/<YYYYMMDDHHMMSS>_<name>.sql
//
// Each file starts as an additive CREATE TABLE skeleton named after the
// migration so it passes ValidateTree before it is edited.
func CreateSQLMigration(root string, name string) ([]string, error) {
	return createSQLMigration(root, name, time.Now().UTC())
}

func createSQLMigration(root, name string, now time.Time) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	safe := sanitizeMigrationName(name)
	if safe == "" {
		return nil, fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	filename := fmt.Sprintf("%s_%s.sql", now.Format("20060102150405"), safe)
	table := strings.TrimPrefix(strings.TrimPrefix(safe, "create_"), "add_")

	paths := make([]string, 0, len(Dialects))
	for _, dialect := range Dialects {
		dir := filepath.Join(root, string(dialect))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dir, err)
		}
		full := filepath.Join(dir, filename)
		if _, err := os.Stat(full); err == nil {
			return nil, fmt.Errorf("migration already exists: %s", full)
		}
		paths = append(paths, full)
	}

	for i, dialect := range Dialects {
		body := fmt.Sprintf(`-- +goose Up
CREATE TABLE IF NOT EXISTS %[1]s (
    id              %[2]s,
    created_at      %[3]s
);

-- +goose Down
DROP TABLE IF EXISTS %[1]s;
`, table, idColumn[dialect], timestampColumn[dialect])

		if err := os.WriteFile(paths[i], []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write migration %q: %w", paths[i], err)
		}
	}
	return paths, nil
}

func sanitizeMigrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}
