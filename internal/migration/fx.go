package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// sqlite deployments (local smoke tests) build their schema with
		// AutoMigrate in the test fixtures; versioned migrations are for the
		// real postgres databases.
		if conn.Dialector.Name() != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
