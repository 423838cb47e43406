package database

import (
	"time"

	gormlogger "gorm.io/gorm/logger"

	"LunaCare/config"
	"LunaCare/pkg/logger"
)

// newLogger 将 gorm 日志写入 zap，慢查询阈值 200ms
func newLogger() gormlogger.Interface {
	var level gormlogger.LogLevel
	switch config.Cfg.LoggerLevel {
	case "DEBUG":
		level = gormlogger.Info
	case "WARN":
		level = gormlogger.Warn
	case "ERROR":
		level = gormlogger.Error
	default:
		level = gormlogger.Warn
	}

	return gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.For("gorm").Sugar().Infof(format, args...)
}
