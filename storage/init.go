package storage

import (
	"LunaCare/config"
	"LunaCare/storage/database"
	"LunaCare/storage/mq"
	"LunaCare/storage/redis"
)

// Options 控制各进程需要的存储组件
type Options struct {
	Redis bool
	MQ    bool
}

// Init 统一初始化 storage 层，数据库始终需要
func Init(opts Options) error {
	if err := database.Init(); err != nil {
		return err
	}

	if opts.Redis && config.Cfg.RedisAddr != "" {
		if err := redis.Init(); err != nil {
			return err
		}
	}

	if opts.MQ {
		if err := mq.Init(); err != nil {
			return err
		}
	}

	return nil
}
