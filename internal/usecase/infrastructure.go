package usecase

import (
	"context"

	"github.com/DRSN-tech/product-vision/internal/domain"
)

// FeatureExtractor возвращает ровно len(batch) векторов одной размерности.
type FeatureExtractor interface {
	Extract(ctx context.Context, batch []domain.Tensor) ([]domain.Embedding, error)
}

type ImageNormalizer interface {
	Normalize(ctx context.Context, raw *domain.RawImage) (domain.Tensor, error)
}

type InferenceExecutor interface {
	Execute(ctx context.Context, images []*domain.RawImage) (*InferenceResult, error)
}

// ImageLoader читает изображения для batch-режима. Отсутствующие файлы не прерывают загрузку,
// а попадают в список пропущенных.
type ImageLoader interface {
	Load(ctx context.Context, refs []domain.ImageRef) ([]*domain.RawImage, []domain.SkippedImage, error)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
