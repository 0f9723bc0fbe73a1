package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/metrics"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/kmeans"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/DRSN-tech/product-vision/pkg/vecmath"
)

// EmbeddingUseCase получает агрегированный вектор продукта по нескольким фотографиям
// и кластеризует произвольные векторы по запросу.
type EmbeddingUseCase struct {
	executor InferenceExecutor
	cache    EmbeddingCacheRepository // nil, если Redis не настроен
	cfg      EmbeddingUCCfg
	logger   logger.Logger
}

func NewEmbeddingUC(executor InferenceExecutor, cache EmbeddingCacheRepository, cfg EmbeddingUCCfg, logger logger.Logger) *EmbeddingUseCase {
	return &EmbeddingUseCase{
		executor: executor,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// ExtractEmbedding возвращает среднее эмбеддингов всех успешно обработанных изображений.
// Пропущенные изображения не участвуют в усреднении. Если не обработано ни одно, возвращает e.ErrNoValidImages.
func (u *EmbeddingUseCase) ExtractEmbedding(ctx context.Context, req *ExtractEmbeddingReq) (*ExtractEmbeddingRes, error) {
	const op = "EmbeddingUseCase.ExtractEmbedding"

	if len(req.Images) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	// Поиск в кэше
	keys := make([]string, len(req.Images))
	for i, image := range req.Images {
		keys[i] = u.cacheKey(image)
	}
	cached := u.getCached(ctx, keys)

	vectors := make([][]float32, 0, len(req.Images))
	misses := make([]*domain.RawImage, 0, len(req.Images))
	missKeys := make([]string, 0, len(req.Images))
	for i, image := range req.Images {
		if v, ok := cached[keys[i]]; ok && len(v) == u.cfg.VectorSize {
			vectors = append(vectors, v)
			continue
		}
		misses = append(misses, image)
		missKeys = append(missKeys, keys[i])
	}

	var skipped []domain.SkippedImage
	if len(misses) > 0 {
		result, err := u.executor.Execute(ctx, misses)
		if result != nil {
			skipped = result.Skipped
		}

		switch {
		case err == nil:
			fresh := make(map[string]domain.Embedding, len(result.Embeddings))
			for i, embedding := range result.Embeddings {
				vectors = append(vectors, embedding)
				fresh[missKeys[result.Indices[i]]] = embedding
			}
			u.setCached(ctx, fresh)
		case errors.Is(err, e.ErrNoValidImages) && len(vectors) > 0:
			// Часть изображений уже есть в кэше
		default:
			return nil, e.Wrap(op, err)
		}
	}

	mean, err := vecmath.Mean(vectors)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrInference, err))
	}

	return NewExtractEmbeddingRes(mean, len(vectors), skipped), nil
}

// ClusterFeatures кластеризует переданные векторы без сохранения результата.
func (u *EmbeddingUseCase) ClusterFeatures(ctx context.Context, req *ClusterFeaturesReq) (*ClusterFeaturesRes, error) {
	const op = "EmbeddingUseCase.ClusterFeatures"

	if err := validateFeatures(req.Features, req.K); err != nil {
		return nil, e.Wrap(op, err)
	}

	started := time.Now()
	result, err := kmeans.Fit(req.Features, req.K, u.cfg.KMeans)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	metrics.ClusteringDuration.Observe(time.Since(started).Seconds())

	return NewClusterFeaturesRes(result.Labels, result.Centroids), nil
}

// validateFeatures переводит ошибки входных данных в клиентские ошибки.
func validateFeatures(features [][]float64, k int) error {
	if len(features) == 0 {
		return e.ErrNoFeatures
	}

	if k <= 0 {
		return e.ErrInvalidK
	}

	dim := len(features[0])
	if dim == 0 {
		return fmt.Errorf("%w: feature vectors must not be empty", e.ErrStatusBadRequest)
	}

	for i, f := range features {
		if len(f) != dim {
			return fmt.Errorf("%w: vector %d has %d values, expected %d", e.ErrDimensionMismatch, i, len(f), dim)
		}
	}

	return nil
}

func (u *EmbeddingUseCase) getCached(ctx context.Context, keys []string) map[string]domain.Embedding {
	if u.cache == nil {
		return nil
	}

	cached, err := u.cache.GetEmbeddings(ctx, keys)
	if err != nil {
		u.logger.Warnf("embedding cache unavailable: %v", err)
		return nil
	}

	for _, key := range keys {
		_, hit := cached[key]
		metrics.CacheResult(hit)
	}

	return cached
}

func (u *EmbeddingUseCase) setCached(ctx context.Context, entries map[string]domain.Embedding) {
	if u.cache == nil || len(entries) == 0 {
		return
	}

	if err := u.cache.SetEmbeddings(ctx, entries); err != nil {
		u.logger.Warnf("failed to cache embeddings: %v", err)
	}
}

// cacheKey зависит от содержимого изображения, политики предобработки и модели.
func (u *EmbeddingUseCase) cacheKey(image *domain.RawImage) string {
	h := sha256.New()
	h.Write([]byte(u.cfg.Policy))
	h.Write([]byte{0})
	h.Write([]byte(u.cfg.Model))
	h.Write([]byte{0})
	h.Write(image.Data)
	return hex.EncodeToString(h.Sum(nil))
}
