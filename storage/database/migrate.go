package database

import (
	"LunaCare/internal/model"
	"LunaCare/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 运行数据库迁移，创建提醒相关的表
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.ReminderSettings{},
		&model.WaterIntake{},
		&model.PushSubscription{},
	)

	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
