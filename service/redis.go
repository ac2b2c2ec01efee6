package service

import (
	"context"
	"errors"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/redis/go-redis/v9"
)

const cutoutKeyPrefix = "cutout:"

// RedisService 抠图结果缓存
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return newRedisService(client, cfg.TTL)
}

func newRedisService(client *redis.Client, ttl time.Duration) *RedisService {
	return &RedisService{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetCutout 从缓存获取抠图 PNG
func (s *RedisService) GetCutout(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, cutoutKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}
	return data, nil
}

// SetCutout 写入抠图 PNG
func (s *RedisService) SetCutout(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, cutoutKeyPrefix+key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
