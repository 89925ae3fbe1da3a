// Package migrations embeds the schema for every supported database driver.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed mysql/*.sql postgres/*.sql sqlite/*.sql
var FS embed.FS

// goose keeps its dialect and base FS in package globals.
var mu sync.Mutex

var dialects = map[string]struct{ dialect, dir string }{
	"mysql":    {"mysql", "mysql"},
	"postgres": {"postgres", "postgres"},
	"sqlite":   {"sqlite3", "sqlite"},
}

// Up applies every pending migration for driver ("mysql", "postgres" or "sqlite").
func Up(ctx context.Context, db *sql.DB, driver string, log zerolog.Logger) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(FS)
	goose.SetLogger(gooseLogger{log})
	if err := goose.SetDialect(d.dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, d.dir)
}

type gooseLogger struct{ log zerolog.Logger }

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info().Str("component", "goose").Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal().Str("component", "goose").Msgf(format, v...)
}
