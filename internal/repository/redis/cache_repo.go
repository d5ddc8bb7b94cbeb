package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/clip-backend/pkg/clients"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// CacheRepo кэширует текстовые эмбеддинги в Redis.
type CacheRepo struct {
	client *clients.RedisClient
	conv   *converter.TextEmbeddingConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv *converter.TextEmbeddingConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetTextEmbedding возвращает вектор по ключу. Промах и повреждённая запись возвращают (nil, nil).
func (c *CacheRepo) GetTextEmbedding(ctx context.Context, key string) ([]float32, error) {
	val, err := c.client.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil // cache miss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	data, err := redisValueToBytes(val, key)
	if err != nil || data == nil {
		return nil, err
	}

	var model converter.TextEmbeddingRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		c.evict(ctx, key)
		return nil, nil
	}

	vector := c.conv.ToVector(&model)
	if vector == nil {
		c.logger.Warnf("Corrupted cache entry: key: %s, dims: %d, len: %d", key, model.Dims, len(model.Vector))
		c.evict(ctx, key)
	}

	return vector, nil
}

// SetTextEmbedding сохраняет вектор с TTL из конфигурации.
func (c *CacheRepo) SetTextEmbedding(ctx context.Context, key string, vector []float32) error {
	data, err := json.Marshal(c.conv.ToRedisModel(vector))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, key, data, c.cfg.EmbeddingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *CacheRepo) evict(ctx context.Context, key string) {
	if err := c.client.Client.Del(ctx, key).Err(); err != nil {
		c.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val interface{}, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
