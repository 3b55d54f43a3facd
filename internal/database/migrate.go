package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// seedFile holds development data and is never applied automatically
const seedFile = "seed.surql"

// Migration is one schema script
type Migration struct {
	Name   string
	Script string
}

// LoadMigrations returns the *.surql files at the root of fsys in name
// order, excluding seed.surql.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.surql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		if path.Base(name) == seedFile {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		migrations = append(migrations, Migration{Name: name, Script: string(content)})
	}
	return migrations, nil
}

// Migrate applies every migration in fsys in order and returns how many ran.
// Scripts use DEFINE ... IF NOT EXISTS, so reapplying them is a no-op.
func Migrate(ctx context.Context, db Database, fsys fs.FS) (int, error) {
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return 0, err
	}

	for i, m := range migrations {
		if err := db.Execute(ctx, m.Script, nil); err != nil {
			return i, fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return len(migrations), nil
}
