package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        `yaml:"addr"`       // Адрес Redis сервера
	Password  string        `yaml:"password"`   // Пароль (пустой если не требуется)
	DB        int           `yaml:"db"`         // Номер базы данных
	KeyPrefix string        `yaml:"key_prefix"` // Префикс перед variant:x:y:z
	TTL       time.Duration `yaml:"ttl"`        // 0 - без срока жизни
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "blockbase:",
	}
}

// RedisVariantStore хранит варианты в Redis строками по два байта
type RedisVariantStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisVariantStore подключается к Redis и проверяет соединение
func NewRedisVariantStore(ctx context.Context, config *RedisConfig) (*RedisVariantStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisVariantStore(client, config), nil
}

func newRedisVariantStore(client *redis.Client, config *RedisConfig) *RedisVariantStore {
	return &RedisVariantStore{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}
}

func (s *RedisVariantStore) key(pos cube.Pos) string {
	return s.keyPrefix + PosKey(pos)
}

func (s *RedisVariantStore) Save(ctx context.Context, pos cube.Pos, id block.VariantID) error {
	if err := checkVariant(id); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(pos), EncodeVariant(id), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save variant: %w", err)
	}
	return nil
}

func (s *RedisVariantStore) Load(ctx context.Context, pos cube.Pos) (block.VariantID, bool, error) {
	data, err := s.client.Get(ctx, s.key(pos)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to get variant: %w", err)
	}

	id, err := DecodeVariant(data)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *RedisVariantStore) Delete(ctx context.Context, pos cube.Pos) error {
	if err := s.client.Del(ctx, s.key(pos)).Err(); err != nil {
		return fmt.Errorf("failed to delete variant: %w", err)
	}
	return nil
}

// BatchSave записывает батч одним пайплайном
func (s *RedisVariantStore) BatchSave(ctx context.Context, variants map[cube.Pos]block.VariantID) error {
	if len(variants) == 0 {
		return nil
	}
	for _, id := range variants {
		if err := checkVariant(id); err != nil {
			return err
		}
	}

	pipe := s.client.Pipeline()
	for pos, id := range variants {
		pipe.Set(ctx, s.key(pos), EncodeVariant(id), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Scan использует SCAN, чтобы не блокировать Redis на больших мирах
func (s *RedisVariantStore) Scan(ctx context.Context, fn func(pos cube.Pos, id block.VariantID) error) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		pos, err := ParsePosKey(key[len(s.keyPrefix):])
		if err != nil {
			return err
		}
		id, ok, err := s.Load(ctx, pos)
		if err != nil {
			return err
		}
		if !ok {
			// ключ истёк между SCAN и GET
			continue
		}
		if err := fn(pos, id); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (s *RedisVariantStore) Close() error {
	return s.client.Close()
}
