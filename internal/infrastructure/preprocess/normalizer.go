// Package preprocess приводит изображения к тензору, который ожидает экстрактор признаков:
// непрозрачный RGB, 224×224, CHW float32 с нормализацией по статистикам ImageNet.
package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

// ForegroundIsolator удаляет фон с изображения и возвращает PNG с альфа-каналом.
type ForegroundIsolator interface {
	RemoveBackground(ctx context.Context, data []byte) ([]byte, error)
}

// Normalizer применяет единственную настроенную политику предобработки.
type Normalizer struct {
	policy    domain.PreprocessPolicy
	isolator  ForegroundIsolator
	maxPixels int64
	logger    logger.Logger
}

type Option func(*Normalizer)

// WithMaxPixels ограничивает ширину×высоту принимаемого изображения. 0 снимает ограничение.
func WithMaxPixels(maxPixels int64) Option {
	return func(n *Normalizer) {
		n.maxPixels = maxPixels
	}
}

// NewNormalizer создаёт Normalizer. isolator может быть nil, тогда фон не удаляется.
// По умолчанию действует лимит DefaultMaxPixels.
func NewNormalizer(policy domain.PreprocessPolicy, isolator ForegroundIsolator, logger logger.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		policy:    policy,
		isolator:  isolator,
		maxPixels: DefaultMaxPixels,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) Policy() domain.PreprocessPolicy {
	return n.policy
}

// Normalize возвращает тензор для одного изображения. Ошибка относится только к этому
// изображению: вызывающий пропускает его и продолжает с остальными.
func (n *Normalizer) Normalize(ctx context.Context, raw *domain.RawImage) (domain.Tensor, error) {
	const op = "Normalizer.Normalize"

	img, _, err := decode(raw.Data, raw.MIMEType, n.maxPixels)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if n.isolator != nil {
		img = n.isolateForeground(ctx, raw, img)
	}

	flat := flattenOnWhite(img)

	var fitted *image.RGBA
	switch n.policy.Name {
	case domain.PolicyPadSquare:
		fitted = padSquare(flat)
	default:
		fitted = centerCrop(flat)
	}

	tensor, err := toTensor(fitted)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return tensor, nil
}

// isolateForeground при любой ошибке удаления фона возвращает исходное изображение.
func (n *Normalizer) isolateForeground(ctx context.Context, raw *domain.RawImage, img image.Image) image.Image {
	out, err := n.isolator.RemoveBackground(ctx, raw.Data)
	if err != nil {
		n.logger.Warnf("%v for %q, using original image: %v", e.ErrBackgroundRemoval, raw.Name, err)
		return img
	}

	fg, err := decodePNG(out, n.maxPixels)
	if err != nil {
		n.logger.Warnf("%v for %q, segmenter returned invalid png: %v", e.ErrBackgroundRemoval, raw.Name, err)
		return img
	}

	return fg
}

func decodePNG(data []byte, maxPixels int64) (image.Image, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(cfg, maxPixels); err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(data))
}
