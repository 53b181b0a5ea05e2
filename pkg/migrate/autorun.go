package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/logger"
)

// AutoUp brings a dev database up to date when the API starts. Deployed
// environments migrate through cmd/migrate before rollout.
func AutoUp(ctx context.Context, cfg *config.Config, client *db.Client, logg *logger.Logger) error {
	if skip := autoUpSkipReason(cfg); skip != "" {
		if cfg.FeatureFlags.AutoMigrate {
			logg.Warn(logg.WithField(ctx, "reason", skip), "migrate.autorun.skipped")
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, "", logg)
	if err != nil {
		return err
	}
	if err := runner.Run(logg.WithField(ctx, "trigger", "autorun"), "up"); err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	return nil
}

// The migrations are Postgres DDL; sqlite dev databases get their schema from
// the test DDL instead.
func autoUpSkipReason(cfg *config.Config) string {
	switch {
	case !cfg.FeatureFlags.AutoMigrate:
		return "disabled"
	case !cfg.App.IsDev():
		return "env " + cfg.App.Env + " migrates through cmd/migrate"
	case cfg.DB.IsSQLite():
		return "sqlite driver"
	}
	return ""
}
