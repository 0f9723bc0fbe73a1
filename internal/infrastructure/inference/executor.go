// Package inference выполняет нормализацию изображений и вызов экстрактора на ограниченном пуле.
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/metrics"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

// Outcome — результат нормализации одного изображения: либо Tensor, либо Err.
type Outcome struct {
	Index  int
	Name   string
	Tensor domain.Tensor
	Err    error
}

// skipReasons задаёт порядок проверки: первая совпавшая ошибка становится причиной пропуска.
var skipReasons = []error{
	e.ErrFileTooLarge,
	e.ErrTooManyPixels,
	e.ErrEmptyImage,
	e.ErrUnsupportedFormat,
	e.ErrUnexpectedChannels,
	e.ErrUndecodableImage,
	e.ErrImageSourceNotFound,
}

type Executor struct {
	pool       *Pool
	normalizer usecase.ImageNormalizer
	extractor  usecase.FeatureExtractor
	logger     logger.Logger
}

func NewExecutor(pool *Pool, normalizer usecase.ImageNormalizer, extractor usecase.FeatureExtractor, logger logger.Logger) *Executor {
	return &Executor{
		pool:       pool,
		normalizer: normalizer,
		extractor:  extractor,
		logger:     logger,
	}
}

// Execute нормализует каждое изображение отдельной задачей пула, затем одним вызовом
// экстрактора получает векторы для всех выживших изображений.
//
// Если ни одно изображение не прошло нормализацию, возвращает e.ErrNoValidImages
// вместе с результатом, в котором заполнен только Skipped.
func (x *Executor) Execute(ctx context.Context, images []*domain.RawImage) (*usecase.InferenceResult, error) {
	const op = "Executor.Execute"

	if len(images) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	outcomes, err := x.normalizeAll(ctx, images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		batch   = make([]domain.Tensor, 0, len(images))
		indices = make([]int, 0, len(images))
		skipped []domain.SkippedImage
	)
	for _, o := range outcomes {
		if o.Err != nil {
			reason := SkipReason(o.Err)
			x.logger.Warnf("skipping image %q: %s", o.Name, reason)
			metrics.ImagesSkippedTotal.WithLabelValues(reason).Inc()
			skipped = append(skipped, domain.SkippedImage{Name: o.Name, Reason: reason})
			continue
		}
		batch = append(batch, o.Tensor)
		indices = append(indices, o.Index)
	}

	if len(batch) == 0 {
		return usecase.NewInferenceResult(nil, nil, skipped), e.Wrap(op, e.ErrNoValidImages)
	}

	embeddings, err := x.extract(ctx, batch)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return usecase.NewInferenceResult(embeddings, indices, skipped), nil
}

// normalizeAll возвращает исходы в порядке входных изображений.
func (x *Executor) normalizeAll(ctx context.Context, images []*domain.RawImage) ([]Outcome, error) {
	outCh := make(chan Outcome, len(images))
	errCh := make(chan error, len(images))

	for i, img := range images {
		go func() {
			var o Outcome
			err := x.pool.Do(ctx, func(ctx context.Context) {
				tensor, err := x.normalizer.Normalize(ctx, img)
				o = Outcome{Index: i, Name: img.Name, Tensor: tensor, Err: err}
			})
			if err != nil {
				errCh <- err
				return
			}
			outCh <- o
		}()
	}

	outcomes := make([]Outcome, len(images))
	for completed := 0; completed < len(images); completed++ {
		select {
		case o := <-outCh:
			outcomes[o.Index] = o
		case err := <-errCh:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return outcomes, nil
}

func (x *Executor) extract(ctx context.Context, batch []domain.Tensor) ([]domain.Embedding, error) {
	var (
		embeddings []domain.Embedding
		extractErr error
	)

	started := time.Now()
	err := x.pool.Do(ctx, func(ctx context.Context) {
		embeddings, extractErr = x.extractor.Extract(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	if extractErr == nil && len(embeddings) != len(batch) {
		extractErr = fmt.Errorf("%w: sent %d tensors, got %d vectors", e.ErrBatchShapeMismatch, len(batch), len(embeddings))
	}
	metrics.ObserveInference(len(batch), started, extractErr)

	if extractErr != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInference, extractErr)
	}

	return embeddings, nil
}

// SkipReason возвращает короткую причину пропуска изображения для ответа и метрик.
func SkipReason(err error) string {
	for _, target := range skipReasons {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return e.ErrUndecodableImage.Error()
}
