package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/livelihood-backend/internal/auth"
	"github.com/angelmondragon/livelihood-backend/internal/users"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
	"github.com/angelmondragon/livelihood-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "command: up|down|status|version|create|validate|bootstrap-admin")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory (the default is also embedded in the binary)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate work on files only
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			fail("missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			fail("failed to create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			fail("migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := execute(ctx, cfg, logg, dbClient, opts); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate command finished")
}

func execute(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, opts options) error {
	if opts.cmd == "bootstrap-admin" {
		if !cfg.Bootstrap.Enabled() {
			return fmt.Errorf("bootstrap super admin email and password must both be set")
		}
		created, err := auth.EnsureSuperAdmin(ctx, users.NewRepository(client.DB()), cfg.Bootstrap, cfg.Password, logg)
		if err != nil {
			return err
		}
		if !created {
			logg.Info(ctx, "super admin already present")
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, opts.dir, logg)
	if err != nil {
		return err
	}
	switch opts.cmd {
	case "up", "down", "status":
		return runner.Run(ctx, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return runner.MigrateTo(ctx, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}
}

func fail(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
