package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "CLAIMLENS_DB_DSN"

type options struct {
	dsn     string
	up      bool
	down    bool
	steps   int
	version bool
	force   int
	forced  bool
}

func main() {
	opts := parseFlags()

	dsn, err := resolveDSN(opts.dsn)
	if err != nil {
		log.Fatalf("resolve database: %v", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("open embedded migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer m.Close()

	msg, err := run(m, opts)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(msg)
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.dsn, "dsn", "", "postgres:// URL; defaults to $"+envDSN+" then CLAIMLENS_DB_* settings")
	flag.BoolVar(&o.up, "up", false, "apply all pending migrations")
	flag.BoolVar(&o.down, "down", false, "revert all migrations, including seeded defaults")
	flag.IntVar(&o.steps, "steps", 0, "apply N migrations (negative reverts)")
	flag.BoolVar(&o.version, "version", false, "print the current version")
	flag.IntVar(&o.force, "force", -1, "mark version N as clean after a failed migration")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dsn URL] -up | -down | -steps N | -version | -force N")
		flag.PrintDefaults()
	}
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			o.forced = true
		}
	})
	return o
}

// resolveDSN prefers an explicit flag, then CLAIMLENS_DB_DSN, then the same
// CLAIMLENS_DB_* variables and defaults the server uses.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	cfg := &database.Config{Name: "claimlens", User: "claimlens", Password: "claimlens"}
	if err := cfg.Finalize(config.DatabaseEnv); err != nil {
		return "", err
	}
	return cfg.URL(), nil
}

func run(m *migrate.Migrate, o options) (string, error) {
	ignoreNoChange := func(err error) error {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	}

	switch {
	case o.version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "no migrations applied", nil
		}
		if err != nil {
			return "", fmt.Errorf("read version: %w", err)
		}
		return fmt.Sprintf("version %d (dirty: %v)", v, dirty), nil
	case o.forced:
		if err := m.Force(o.force); err != nil {
			return "", fmt.Errorf("force version %d: %w", o.force, err)
		}
		return fmt.Sprintf("forced version %d", o.force), nil
	case o.up:
		if err := ignoreNoChange(m.Up()); err != nil {
			return "", fmt.Errorf("migrate up: %w", err)
		}
		return "schema up to date", nil
	case o.down:
		if err := ignoreNoChange(m.Down()); err != nil {
			return "", fmt.Errorf("migrate down: %w", err)
		}
		return "all migrations reverted", nil
	case o.steps != 0:
		if err := ignoreNoChange(m.Steps(o.steps)); err != nil {
			return "", fmt.Errorf("migrate %d steps: %w", o.steps, err)
		}
		return fmt.Sprintf("applied %d steps", o.steps), nil
	default:
		flag.Usage()
		os.Exit(2)
		return "", nil
	}
}
