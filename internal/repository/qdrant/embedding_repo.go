package qdrant

import (
	"context"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// EmbeddingRepo зеркалирует векторы продуктов в Qdrant. Источник истины — PostgreSQL.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет точку продукта. ID точки — ID продукта, поэтому повторная
// экстракция перезаписывает прежний вектор.
func (q *EmbeddingRepo) Upsert(ctx context.Context, point *domain.QdrantPoint) error {
	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.CollectionName,
		Wait:           &wait,
		Points:         []*qdrant.PointStruct{toPointStruct(point)},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func toPointStruct(point *domain.QdrantPoint) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(point.ID),
		Vectors: qdrant.NewVectors(point.Vectors...),
		Payload: qdrant.NewValueMap(point.Payloads),
	}
}
