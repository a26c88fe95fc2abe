package storage

import (
	"context"
	"fmt"
)

// Backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMaria  = "maria"
	BackendMongo  = "mongo"
)

// Config выбирает и настраивает хранилище вариантов
type Config struct {
	Backend  string      `yaml:"backend"`
	Path     string      `yaml:"path"` // каталог данных Badger
	Redis    RedisConfig `yaml:"redis"`
	MariaDSN string      `yaml:"maria_dsn"`
	Mongo    MongoConfig `yaml:"mongo"`
}

// Open создаёт хранилище по конфигурации
func Open(ctx context.Context, cfg Config) (VariantStore, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryVariantStore(), nil
	case BackendBadger:
		return NewBadgerVariantStore(cfg.Path)
	case BackendRedis:
		return NewRedisVariantStore(ctx, &cfg.Redis)
	case BackendMaria:
		return NewMariaVariantStore(cfg.MariaDSN)
	case BackendMongo:
		return NewMongoVariantStore(cfg.Mongo)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
