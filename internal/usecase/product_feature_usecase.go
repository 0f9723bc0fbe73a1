package usecase

import (
	"context"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

// ProductFeatureUseCase вычисляет и сохраняет вектор признаков продукта в batch-режиме.
type ProductFeatureUseCase struct {
	loader      ImageLoader
	embeddings  EmbeddingUC
	featureRepo ProductFeatureRepository
	mirror      VectorMirrorRepository // nil, если Qdrant не настроен
	policy      string
	model       string
	logger      logger.Logger
}

func NewProductFeatureUC(
	loader ImageLoader,
	embeddings EmbeddingUC,
	featureRepo ProductFeatureRepository,
	mirror VectorMirrorRepository,
	policy string,
	model string,
	logger logger.Logger,
) *ProductFeatureUseCase {
	return &ProductFeatureUseCase{
		loader:      loader,
		embeddings:  embeddings,
		featureRepo: featureRepo,
		mirror:      mirror,
		policy:      policy,
		model:       model,
		logger:      logger,
	}
}

// ExtractProductFeature загружает изображения, усредняет их эмбеддинги и перезаписывает вектор продукта.
// Повторный вызов для того же продукта заменяет прежнюю запись.
func (p *ProductFeatureUseCase) ExtractProductFeature(ctx context.Context, req *ExtractProductFeatureReq) (*ExtractProductFeatureRes, error) {
	const op = "ProductFeatureUseCase.ExtractProductFeature"

	if req.ProductID <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidProductID)
	}

	if len(req.Images) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	refs := make([]domain.ImageRef, len(req.Images))
	for i, path := range req.Images {
		refs[i] = domain.ParseImageRef(path)
	}

	images, skipped, err := p.loader.Load(ctx, refs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	for _, s := range skipped {
		p.logger.Warnf("product %d: image %s skipped: %s", req.ProductID, s.Name, s.Reason)
	}

	if len(images) == 0 {
		return nil, e.Wrap(op, e.ErrNoValidImages)
	}

	embedding, err := p.embeddings.ExtractEmbedding(ctx, NewExtractEmbeddingReq(images))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	skipped = append(skipped, embedding.Skipped...)

	feature, err := p.featureRepo.Upsert(ctx, domain.NewProductFeature(req.ProductID, embedding.Vector, p.policy))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Зеркало в Qdrant не является источником истины: ошибка только логируется
	mirrored := false
	if p.mirror != nil {
		payload := domain.NewPayload(feature.ProductID, embedding.ImagesProcessed, p.policy, p.model)
		if err := p.mirror.Upsert(ctx, domain.NewProductPoint(feature.ProductID, feature.Vector, payload)); err != nil {
			p.logger.Warnf("product %d: vector mirror failed: %v", req.ProductID, e.Wrap(op, err))
		} else {
			mirrored = true
		}
	}

	p.logger.Infof("product %d: feature stored, images_processed=%d skipped=%d",
		req.ProductID, embedding.ImagesProcessed, len(skipped))

	return NewExtractProductFeatureRes(feature, embedding.ImagesProcessed, skipped, mirrored), nil
}
