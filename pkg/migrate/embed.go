package migrate

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/angelmondragon/labstock-backend/pkg/db"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedded embed.FS

// Migrations returns the embedded migration set for the dialect.
func Migrations(dialect db.Dialect) (fs.FS, error) {
	sub, err := fs.Sub(embedded, "migrations/"+string(dialect))
	if err != nil {
		return nil, fmt.Errorf("migrations for %q: %w", dialect, err)
	}
	return sub, nil
}
