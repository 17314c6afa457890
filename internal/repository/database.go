package repository

import (
	"github.com/autocat/backup-server/internal/config"
	"github.com/autocat/backup-server/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate, parents before children
	err = db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Brand{},
		&models.CarModel{},
		&models.Version{},
		&models.Color{},
		&models.Optional{},
		&models.Vehicle{},
		&models.VehicleOptional{},
		&models.DirectSale{},
		&models.Backup{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
