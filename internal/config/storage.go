package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/mythic/pkg/log"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreNone   = "none"
)

type StorageConfig struct {
	Backend string `env:"STORE_BACKEND" envDefault:"sqlite"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

func ParseStorageConfig() (*StorageConfig, error) {
	c := &StorageConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	return c, nil
}

func NewStorageConfig(ctx context.Context) *StorageConfig {
	c, err := ParseStorageConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Storage config")
	}
	return c
}
