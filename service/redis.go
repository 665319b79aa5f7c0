package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const optimizeKeyPrefix = "optimize:"

// ResultCache 优化结果缓存。未命中时返回 (nil, nil)。
type ResultCache interface {
	Get(ctx context.Context, key string) (*model.OptimizeResult, error)
	Set(ctx context.Context, key string, result *model.OptimizeResult) error
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisService(cfg *config.RedisConfig, logger *zap.Logger) *RedisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get 从缓存获取优化结果
func (s *RedisService) Get(ctx context.Context, key string) (*model.OptimizeResult, error) {
	data, err := s.client.Get(ctx, optimizeKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result model.OptimizeResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Error("failed to unmarshal optimize result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// Set 写入缓存
func (s *RedisService) Set(ctx context.Context, key string, result *model.OptimizeResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, optimizeKeyPrefix+key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// NopCache 未启用 Redis 时使用
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*model.OptimizeResult, error) { return nil, nil }

func (NopCache) Set(context.Context, string, *model.OptimizeResult) error { return nil }
