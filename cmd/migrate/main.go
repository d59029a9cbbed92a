package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", migrate.CmdUp, "up|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := offline(opts); !errors.Is(err, errNeedsDatabase) {
		exitOn(err)
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(err)

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogFormat == "console",
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": opts.cmd, "dir": opts.dir})

	if err := apply(ctx, cfg.DB, opts, logg); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

var errNeedsDatabase = errors.New("command needs a database")

// offline handles the commands that only touch the migrations directory.
func offline(opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	case migrate.CmdVersion:
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
	}
	return errNeedsDatabase
}

func apply(ctx context.Context, cfg config.DBConfig, opts options, logg *logger.Logger) error {
	client, err := db.New(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(cfg.Driver, sqlDB, opts.dir, logg)
	if err != nil {
		return err
	}
	return runner.Run(ctx, opts.cmd, opts.version)
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
