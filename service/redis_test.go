package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopCache(t *testing.T) {
	var cache ResultCache = NopCache{}
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", &model.OptimizeResult{MD5: "k"}))
	got, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

// testRedis Redis 不可用时跳过
func testRedis(t *testing.T) *RedisService {
	t.Helper()
	addr := os.Getenv("SHIPKIT_TEST_REDIS")
	if addr == "" {
		addr = "localhost:6379"
	}
	svc := NewRedisService(&config.RedisConfig{Addr: addr, DB: 15, TTL: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		t.Skipf("skipping integration test: redis not reachable: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestRedisServiceRoundTrip(t *testing.T) {
	svc := testRedis(t)
	ctx := context.Background()

	key := "redis-test-" + time.Now().Format("150405.000000")
	miss, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, miss)

	result := &model.OptimizeResult{
		MD5:         key,
		ContentType: "image/jpeg",
		Image:       []byte{0xff, 0xd8, 0xff},
		Metrics:     &model.PipelineMetrics{OutputSizeBytes: 3, StageMetrics: map[string]any{"encode_quality": 80}},
	}
	require.NoError(t, svc.Set(ctx, key, result))

	got, err := svc.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, result.Image, got.Image)
	assert.Equal(t, 3, got.Metrics.OutputSizeBytes)
	assert.EqualValues(t, 80, got.Metrics.StageMetrics["encode_quality"])
}
