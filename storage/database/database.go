package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"LunaCare/config"
	"LunaCare/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

func Init() error {
	dbOnce.Do(func() {
		dsn := buildDSN()
		gormCfg := &gorm.Config{
			Logger:                                   newLogger(),
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              true,
			SkipDefaultTransaction:                   true,
		}

		var gormDB *gorm.DB
		gormDB, dbErr = gorm.Open(postgres.Open(dsn), gormCfg)
		if dbErr != nil {
			logger.Logger.Error("Failed to open database", zap.String("dsn", "please check database connection"), zap.Error(dbErr))
			return
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			dbErr = err
			logger.Logger.Error("Failed to get sql.DB from gorm", zap.Error(err))
			return
		}

		configureConnectionPool(sqlDB)

		if err := sqlDB.Ping(); err != nil {
			dbErr = err
			logger.Logger.Error("Failed to ping database", zap.Error(err))
			return
		}

		if err := InitDatabaseMetrics(otel.Meter("lunacare")); err != nil {
			logger.Logger.Warn("Failed to init database metrics", zap.Error(err))
		}
		if err := gormDB.Use(&TracingPlugin{}); err != nil {
			logger.Logger.Warn("Failed to register database tracing plugin", zap.Error(err))
		}

		db = gormDB
		if err := Migrate(); err != nil {
			dbErr = fmt.Errorf("failed to run database migration: %w", err)
			return
		}
		logger.Logger.Info("Database initialized successfully",
			zap.String("host", config.Cfg.PostgreSQLHost),
			zap.String("database", config.Cfg.PostgreSQLDatabase),
		)
	})

	return dbErr
}

func DB() *gorm.DB {
	return db // 导出给 repository 层构造各个 store
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sqlDB.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func buildDSN() string {
	return config.Cfg.GetDSN()
}

func configureConnectionPool(sqlDB *sql.DB) {
	cfg := config.Cfg

	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
}
