package db

import (
	"errors"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"strideminder/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL. A
// postgres:// or postgresql:// URL selects PostgreSQL; anything else is
// taken as a SQLite file path.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return Open(cfg.DatabaseURL)
}

// Open connects to dsn and migrates the gait and device tables.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL or SQLite path)")
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
		dialector = sqlite.Open(dsn)
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Device{}, &rawGaitParams{}, &hourlyGaitParams{}, &dailyGaitParams{}, &monthlyGaitParams{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapDevice registers the device key from config so a fresh
// deployment can ingest without manual setup. An existing device with the
// same key is re-activated and renamed.
func EnsureBootstrapDevice(db *gorm.DB, cfg *config.Config) error {
	if cfg.DeviceKey == "" {
		return nil
	}
	hash := HashKey(cfg.DeviceKey)

	// Use Find so "not found" doesn't log as error.
	var existing Device
	if err := db.Where("key_hash = ?", hash).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	if existing.ID != 0 {
		if existing.Active && existing.Name == cfg.DeviceName {
			return nil
		}
		return db.Model(&existing).Updates(map[string]any{
			"name":   cfg.DeviceName,
			"active": true,
		}).Error
	}

	return db.Create(&Device{
		Name:    cfg.DeviceName,
		KeyHash: hash,
		Active:  true,
	}).Error
}
