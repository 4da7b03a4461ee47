package pg

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
)

// RunMigrations aplica los *.up.sql embebidos, en orden lexicográfico.
// Los scripts son idempotentes (IF NOT EXISTS), así que correrlas de nuevo
// es seguro.
func (s *Store) RunMigrations(ctx context.Context, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	log := logger.Named("store.pg.migrate")
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			log.Error("migration failed", logger.Err(err))
			return err
		}
		log.Info("applied " + name)
	}
	return nil
}
