// Package migrate applies the goose SQL migrations shipped under
// pkg/migrate/migrations and offers the file helpers cmd/migrate exposes.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// Commands accepted by Runner.Run.
const (
	CmdUp      = "up"
	CmdDown    = "down"
	CmdRedo    = "redo"
	CmdStatus  = "status"
	CmdVersion = "version"
)

// Dialect maps a configured DB driver onto a goose dialect.
func Dialect(driver string) goose.Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Runner wraps a goose provider bound to one database and migrations directory.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(driver string, db *sql.DB, dir string, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if dir == "" {
		return nil, errors.New("migrate: dir is required")
	}
	provider, err := goose.NewProvider(Dialect(driver), db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("migrate: provider for %s: %w", dir, err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Run executes command. target is only read by CmdVersion, which moves the
// schema up or down to the given YYYYMMDDHHMMSS version.
func (r *Runner) Run(ctx context.Context, command, target string) error {
	switch command {
	case CmdUp:
		results, err := r.provider.Up(ctx)
		r.report(ctx, results)
		return wrap(command, err)
	case CmdDown:
		res, err := r.provider.Down(ctx)
		r.report(ctx, []*goose.MigrationResult{res})
		return wrap(command, err)
	case CmdRedo:
		res, err := r.provider.Down(ctx)
		r.report(ctx, []*goose.MigrationResult{res})
		if err != nil {
			return wrap(command, err)
		}
		res, err = r.provider.UpByOne(ctx)
		r.report(ctx, []*goose.MigrationResult{res})
		return wrap(command, err)
	case CmdStatus:
		return r.status(ctx)
	case CmdVersion:
		return r.migrateTo(ctx, target)
	}
	return fmt.Errorf("migrate: unknown command %q", command)
}

func (r *Runner) migrateTo(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return fmt.Errorf("migrate: invalid version %q: %w", target, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: current version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case version > current:
		results, err = r.provider.UpTo(ctx, version)
	case version < current:
		results, err = r.provider.DownTo(ctx, version)
	}
	r.report(ctx, results)
	return wrap(CmdVersion, err)
}

func (r *Runner) status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return wrap(CmdStatus, err)
	}
	if r.logg == nil {
		return nil
	}
	for _, st := range statuses {
		fields := map[string]any{"version": st.Source.Version, "state": string(st.State)}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration.status")
	}
	return nil
}

func (r *Runner) report(ctx context.Context, results []*goose.MigrationResult) {
	if r.logg == nil {
		return
	}
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration.applied")
	}
}

func wrap(command string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("migrate %s: %w", command, err)
}
