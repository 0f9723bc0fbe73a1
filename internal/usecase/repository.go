package usecase

import (
	"context"

	"github.com/DRSN-tech/product-vision/internal/domain"
)

type ProductFeatureRepository interface {
	Upsert(ctx context.Context, feature *domain.ProductFeature) (*domain.ProductFeature, error)
	List(ctx context.Context) ([]domain.ProductFeature, error)
}

type ClusterRepository interface {
	SaveRun(ctx context.Context, assignment *domain.ClusterAssignment, retention int) (*domain.ClusterRun, error)
	LatestClusters(ctx context.Context) ([]domain.Cluster, error)
}

type EmbeddingCacheRepository interface {
	GetEmbeddings(ctx context.Context, keys []string) (map[string]domain.Embedding, error)
	SetEmbeddings(ctx context.Context, entries map[string]domain.Embedding) error
}

type VectorMirrorRepository interface {
	Upsert(ctx context.Context, point *domain.QdrantPoint) error
}

// Transactor выполняет fn в одной транзакции: commit при nil, rollback при ошибке.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}
