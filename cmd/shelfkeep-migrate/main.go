// Package main is the entry point for the Shelfkeep database migration
// tool. It applies the embedded schema migrations for whichever metadata
// database the configuration selects.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/repository/postgres"
	"github.com/shelfkeep/shelfkeep/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// migrator is the slice of the driver DB types the tool needs.
type migrator interface {
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	if command == "version" {
		fmt.Printf("shelfkeep-migrate %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}
	if command == "help" || command == "-h" || command == "--help" {
		printUsage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := connect(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		version, err := db.SchemaVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read schema version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("migrations applied, schema at version %d\n", version)

	case "status":
		version, err := db.SchemaVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read schema version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("driver: %s\nschema version: %d\n", cfg.Database.Driver, version)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// connect opens the configured metadata database.
func connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (migrator, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
	case "postgres":
		return postgres.NewDB(ctx, cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func printUsage() {
	fmt.Println(`Shelfkeep Migration Tool

Usage:
  shelfkeep-migrate [-config path] <command>

Commands:
  up          Apply all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message

The database is selected by the same configuration the server uses
(config file plus SHELFKEEP_ environment variables).

Examples:
  shelfkeep-migrate up
  shelfkeep-migrate -config /etc/shelfkeep/config.yaml status`)
}
