package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/infrastructure"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

// ObjectDownloader — источник изображений в объектном хранилище.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket string, key string) (*domain.RawImage, error)
}

// ImageLoader читает изображения batch-режима из локальной ФС и из MinIO параллельно,
// не больше limit одновременных чтений. Порядок результата совпадает с порядком refs.
type ImageLoader struct {
	objects      ObjectDownloader // nil, если MinIO не настроен
	logger       logger.Logger
	limit        int
	maxImageSize int64
}

func NewImageLoader(objects ObjectDownloader, logger logger.Logger, limit int, maxImageSize int64) *ImageLoader {
	if limit <= 0 {
		limit = 1
	}

	return &ImageLoader{
		objects:      objects,
		logger:       logger,
		limit:        limit,
		maxImageSize: maxImageSize,
	}
}

type loadResult struct {
	image   *domain.RawImage
	skipped *domain.SkippedImage
}

// Load возвращает прочитанные изображения и пропущенные. Отсутствующий или слишком большой файл
// пропускается, прочие ошибки ввода-вывода прерывают загрузку.
func (l *ImageLoader) Load(ctx context.Context, refs []domain.ImageRef) ([]*domain.RawImage, []domain.SkippedImage, error) {
	const op = "ImageLoader.Load"

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]loadResult, len(refs))
	errCh := make(chan error, len(refs))
	sem := make(chan struct{}, l.limit)

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			defer func() { <-sem }()

			image, err := l.loadOne(ctx, ref)
			switch {
			case err == nil:
				results[i] = loadResult{image: image}
			case errors.Is(err, e.ErrImageSourceNotFound) || errors.Is(err, e.ErrFileTooLarge):
				reason := e.ErrImageSourceNotFound.Error()
				if errors.Is(err, e.ErrFileTooLarge) {
					reason = e.ErrFileTooLarge.Error()
				}
				l.logger.Warnf("image %s skipped: %v", ref.Path, err)
				results[i] = loadResult{skipped: &domain.SkippedImage{Name: ref.Path, Reason: reason}}
			default:
				errCh <- fmt.Errorf("load %s: %w", ref.Path, err)
				cancel()
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return nil, nil, e.Wrap(op, err)
	}

	images := make([]*domain.RawImage, 0, len(refs))
	var skipped []domain.SkippedImage
	for _, r := range results {
		if r.skipped != nil {
			skipped = append(skipped, *r.skipped)
			continue
		}
		images = append(images, r.image)
	}

	return images, skipped, nil
}

func (l *ImageLoader) loadOne(ctx context.Context, ref domain.ImageRef) (*domain.RawImage, error) {
	if ref.Kind == domain.ImageSourceObject {
		if l.objects == nil {
			return nil, fmt.Errorf("%w: object storage is not configured", e.ErrImageSourceNotFound)
		}
		image, err := l.objects.Download(ctx, ref.Bucket, ref.ObjectKey)
		if err != nil {
			return nil, err
		}
		if image.MIMEType == "" || image.MIMEType == "application/octet-stream" {
			image.MIMEType = infrastructure.MIMEFromPath(ref.ObjectKey)
		}
		return image, nil
	}

	return l.readFile(ref.Path)
}

func (l *ImageLoader) readFile(path string) (*domain.RawImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", e.ErrImageSourceNotFound, path)
		}
		return nil, err
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", e.ErrImageSourceNotFound, path)
	}

	if l.maxImageSize > 0 && info.Size() > l.maxImageSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", e.ErrFileTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return domain.NewRawImage(filepath.Base(path), infrastructure.MIMEFromPath(path), data), nil
}
