package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot when running in dev with
// the auto-migrate flag set. Everywhere else it is a no-op.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("migrate: sql handle: %w", err)
	}
	runner, err := NewRunner(cfg.DB.Driver, sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "dir", DefaultDir)
	logg.Info(ctx, "migration.autorun")
	return runner.Run(ctx, CmdUp, "")
}
