package redis

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/repository/redis/converter"
	"github.com/DRSN-tech/product-vision/pkg/clients"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/jimlawless/whereami"
)

// CacheRepo кэширует эмбеддинги отдельных изображений. Ключ вычисляет вызывающая сторона
// по содержимому изображения, политике предобработки и модели.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.EmbeddingConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.EmbeddingConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetEmbeddings возвращает найденные в кэше эмбеддинги. Промахи и повреждённые записи пропускаются.
func (r *CacheRepo) GetEmbeddings(ctx context.Context, keys []string) (map[string]domain.Embedding, error) {
	if len(keys) == 0 {
		return map[string]domain.Embedding{}, nil
	}

	values, err := r.client.Client.MGet(ctx, r.buildCacheKeys(keys)...).Result()
	if err != nil {
		r.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make(map[string]domain.Embedding, len(values))
	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			r.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
		}

		if data == nil {
			continue // cache miss
		}

		embedding, err := r.conv.ToEntity(data)
		if err != nil {
			r.logger.Warnf("corrupted cache entry %s: %v", keys[i], err)
			if err := r.client.Client.Del(ctx, r.embeddingKey(keys[i])).Err(); err != nil {
				r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			continue
		}

		result[keys[i]] = embedding
	}

	return result, nil
}

// SetEmbeddings пишет эмбеддинги одним pipeline с TTL. Ошибки записи только логируются.
func (r *CacheRepo) SetEmbeddings(ctx context.Context, entries map[string]domain.Embedding) error {
	if len(entries) == 0 {
		return nil
	}

	pipeline := r.client.Client.Pipeline()
	for key, embedding := range entries {
		pipeline.Set(ctx, r.embeddingKey(key), r.conv.ToRedisModel(embedding), r.cfg.EmbeddingTTL)
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		r.logger.Warnf("cache pipeline failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

func (r *CacheRepo) buildCacheKeys(keys []string) []string {
	result := make([]string, len(keys))
	for i, key := range keys {
		result[i] = r.embeddingKey(key)
	}

	return result
}

func (r *CacheRepo) embeddingKey(key string) string {
	return fmt.Sprintf("embedding:%s", key)
}

// redisValueToBytes конвертирует значение из Redis в []byte.
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
