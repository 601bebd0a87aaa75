// Package db opens the gorm database handle used across the application.
package db

import (
	"fmt"

	"github.com/nominalabs/nomina/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	handle, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Named("db").Info("database connected")
	return handle, nil
}

var Module = fx.Module("db",
	fx.Provide(Open),
)
