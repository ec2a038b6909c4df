package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// Models lists every persisted entity, in migration order
func Models() []any {
	return []any{
		&entities.Unit{},
		&entities.UomConversion{},
		&entities.StockItem{},
		&entities.StockItemAlias{},
		&entities.Product{},
		&entities.SKU{},
		&entities.SkuPackMap{},
		&entities.BOMHeader{},
		&entities.BOMLine{},
		&entities.BOMOverride{},
		&entities.BatchSizeRule{},
		&entities.ProductMonthDemand{},
		&entities.MakeQtyOverride{},
		&entities.SkuMonthForecast{},
		&entities.BatchPlanHeader{},
		&entities.BatchPlanLine{},
		&entities.Batch{},
		&entities.SeasonProfile{},
		&entities.SeasonWeight{},
		&entities.OverlayRun{},
		&entities.OverlayDetail{},
		&entities.MRPRun{},
		&entities.RequirementDetail{},
		&entities.LineageStep{},
		&entities.ActiveRunPointer{},
		&entities.IssueLine{},
	}
}

// OpenDB opens the configured database and migrates the schema
func OpenDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, initConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// one writer; SQLite serialises anyway and :memory: is per connection
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

func initConfig(cfg *Config) *gorm.Config {
	logMode := logger.Silent
	if cfg.GormLog {
		logMode = logger.Info
	}
	return &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logMode,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}
