// Package main runs postgres schema migrations
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/infrastructure/persistence/migrations"
	"github.com/nutriscan/tracker/pkg/logger"
	"go.uber.org/zap"
)

const usage = `usage: migrate [-config path] <command>

commands:
  up             apply all pending migrations
  down           roll back the last migration
  reset          roll back every migration
  version        print the current version
  force VERSION  mark VERSION as applied without running it
`

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Format: "console", Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != "postgres" {
		log.Fatal("Migrations only apply to postgres; sqlite schemas are created on startup",
			zap.String("driver", cfg.Database.Driver))
	}

	m, err := migrations.NewFromURL(cfg.GetMigrationURL(), log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer func() { _ = m.Close() }()

	if err := run(m, flag.Args(), log); err != nil {
		log.Fatal("Migration failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func run(m *migrations.Migrator, args []string, log *zap.Logger) error {
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "reset":
		return m.Reset()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return m.Force(version)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
