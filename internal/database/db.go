package database

import (
	"fmt"

	"backoffice/internal/config"
	"backoffice/internal/model"
	"backoffice/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM.
// The schema is migrated separately by Migrate.
func NewConnection(cfg config.PostgresConfig, log *logger.Logger, debug bool) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := open(postgres.Open(cfg.DSN()), cfg, gormlogger.Default.LogMode(logLevel), true)
	if err != nil {
		return nil, err
	}
	log.Infow("database pool ready",
		"host", cfg.Host, "database", cfg.DBName,
		"max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns)
	return db, nil
}

func open(dialector gorm.Dialector, cfg config.PostgresConfig, gormLog gormlogger.Interface, ping bool) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		// Surfaces unique violations as gorm.ErrDuplicatedKey.
		TranslateError:       true,
		Logger:               gormLog,
		DisableAutomaticPing: !ping,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Product{},
		&model.ProductVariant{},
		&model.SpecialProduct{},
		&model.Combination{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderActivity{},
		&model.InventoryLog{},
		&model.StockAlert{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.Payment{},
		&model.Sequence{},
		&model.Expense{},
		&model.Job{},
		&model.AuditLog{},
	)
}
