package usecase

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/kmeans"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/DRSN-tech/product-vision/pkg/vecmath"
)

// ClassifyUseCase относит фотографии продукта к ближайшему кластеру последней версии.
type ClassifyUseCase struct {
	embeddings  EmbeddingUC
	clusterRepo ClusterRepository
	logger      logger.Logger
}

func NewClassifyUC(embeddings EmbeddingUC, clusterRepo ClusterRepository, logger logger.Logger) *ClassifyUseCase {
	return &ClassifyUseCase{
		embeddings:  embeddings,
		clusterRepo: clusterRepo,
		logger:      logger,
	}
}

func (c *ClassifyUseCase) Classify(ctx context.Context, req *ExtractEmbeddingReq) (*ClassifyRes, error) {
	const op = "ClassifyUseCase.Classify"

	clusters, err := c.clusterRepo.LatestClusters(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(clusters) == 0 {
		return nil, e.Wrap(op, e.ErrNoClusters)
	}

	embedding, err := c.embeddings.ExtractEmbedding(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	centroids := make([][]float64, len(clusters))
	for i, cluster := range clusters {
		centroids[i] = cluster.Centroid
	}

	idx, distance := kmeans.Nearest(vecmath.ToFloat64(embedding.Vector), centroids)
	if idx < 0 {
		// Центроиды посчитаны для другой размерности вектора
		return nil, e.Wrap(op, fmt.Errorf("%w: no centroid of dimension %d", e.ErrNoClusters, len(embedding.Vector)))
	}

	return NewClassifyRes(&clusters[idx], distance, embedding.Skipped), nil
}
