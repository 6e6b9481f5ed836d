package cache

import (
	"os"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"todo-service/config"
)

func InitializeCache(cfg config.Config) cache.Cache {
	c, err := cache.New(cache.Config{
		Type:          "redis",
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("Failed to initialize cache:", zap.Error(err))
		os.Exit(1)
	}
	return c
}
