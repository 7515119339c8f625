package migration

import (
	"github.com/smallbiznis/telbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Apply brings the schema up to date for the configured database type.
func Apply(conn *gorm.DB, cfg config.Config) error {
	if cfg.DBType == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			log.Info("schema migration on startup disabled")
			return nil
		}
		if err := Apply(conn, cfg); err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("db_type", cfg.DBType))
		return nil
	}),
)
