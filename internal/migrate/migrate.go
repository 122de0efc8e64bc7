package migrate

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/example/sabores-reservas/internal/db"
)

//go:embed *.sql
var fs embed.FS

// Up applies the embedded *.sql files in lexical order, each one in its own
// transaction, recording applied versions in schema_migrations.
func Up(ctx context.Context, d *db.DB) error {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// schema_migrations table
	if err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY);`); err != nil {
		return err
	}

	for _, f := range files {
		var applied bool
		if err := d.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		b, err := fs.ReadFile(f)
		if err != nil {
			return err
		}
		version := f
		err = d.WithTx(ctx, func(ctx context.Context) error {
			if err := d.Exec(ctx, string(b)); err != nil {
				return fmt.Errorf("apply %s: %w", version, err)
			}
			return d.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, version)
		})
		if err != nil {
			return err
		}
	}

	return nil
}
