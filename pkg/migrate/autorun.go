package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date at startup when auto-migrate is
// enabled or the app is running in dev mode.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate && !cfg.App.IsDev() {
		return nil
	}

	sqlDB, err := client.SQLDB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": string(client.Dialect())})
	logg.Info(ctx, "ensuring schema")

	results, err := EnsureSchema(ctx, sqlDB, client.Dialect())
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	logg.Info(logg.WithField(ctx, "applied", len(results)), "schema up to date")
	return nil
}
