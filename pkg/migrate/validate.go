package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/labstock-backend/pkg/db"
)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

var (
	sqlFileRe  = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	createRe   = regexp.MustCompile(`(?i)^CREATE\s+(UNIQUE\s+)?(TABLE|INDEX|VIEW)\s`)
	dropRe     = regexp.MustCompile(`(?i)^DROP\s+(TABLE|INDEX|VIEW)\s`)
	ifExistsRe = regexp.MustCompile(`(?i)\sIF\s+EXISTS\s`)
	ifMissing  = regexp.MustCompile(`(?i)\sIF\s+NOT\s+EXISTS\s`)
)

// Dialects lists the dialect subdirectories every migration must exist in.
var Dialects = []db.Dialect{db.DialectSQLite, db.DialectPostgres}

// ValidateTree validates every dialect directory under root and checks that
// they ship the same migration files.
func ValidateTree(root string) error {
	if root == "" {
		return fmt.Errorf("root is required")
	}

	var errs error
	files := map[db.Dialect][]string{}
	for _, dialect := range Dialects {
		names, err := validateDir(filepath.Join(root, string(dialect)))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", dialect, err))
			continue
		}
		files[dialect] = names
	}
	if errs != nil {
		return errs
	}

	base := Dialects[0]
	for _, dialect := range Dialects[1:] {
		if missing := difference(files[base], files[dialect]); len(missing) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s lacks %s", dialect, strings.Join(missing, ", ")))
		}
		if extra := difference(files[dialect], files[base]); len(extra) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s lacks %s", base, strings.Join(extra, ", ")))
		}
	}
	return errs
}

// ValidateDir checks one dialect directory: file names, unique versions,
// goose markers in Up then Down order, and additive DDL so EnsureSchema can
// replay a file against a schema that already has its objects.
func ValidateDir(dir string) error {
	_, err := validateDir(dir)
	return err
}

func validateDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version := m[1]
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		if err := checkFile(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func checkFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	section := ""
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, upMarker):
			if section != "" {
				return fmt.Errorf("line %d: %q must come first", lineNo, upMarker)
			}
			section = "up"
		case strings.HasPrefix(line, downMarker):
			if section != "up" {
				return fmt.Errorf("line %d: %q before %q", lineNo, downMarker, upMarker)
			}
			section = "down"
		case section == "up" && createRe.MatchString(line) && !ifMissing.MatchString(line):
			return fmt.Errorf("line %d: CREATE without IF NOT EXISTS", lineNo)
		case section == "down" && dropRe.MatchString(line) && !ifExistsRe.MatchString(line):
			return fmt.Errorf("line %d: DROP without IF EXISTS", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch section {
	case "":
		return fmt.Errorf("missing %q", upMarker)
	case "up":
		return fmt.Errorf("missing %q", downMarker)
	}
	return nil
}

func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, v := range b {
		in[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := in[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
