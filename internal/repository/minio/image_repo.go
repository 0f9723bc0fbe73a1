package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo читает исходные изображения продуктов из MinIO.
type ImageRepo struct {
	mc           *minio.Client
	cfg          *cfg.MinIOCfg
	maxImageSize int64
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg, maxImageSize int64) *ImageRepo {
	return &ImageRepo{
		mc:           mc,
		cfg:          cfg,
		maxImageSize: maxImageSize,
	}
}

// Download скачивает объект key из bucket (или из бакета по умолчанию, если bucket пуст).
// Отсутствующий объект возвращает e.ErrImageSourceNotFound, слишком большой — e.ErrFileTooLarge.
func (i *ImageRepo) Download(ctx context.Context, bucket string, key string) (*domain.RawImage, error) {
	if bucket == "" {
		bucket = i.cfg.BucketName
	}

	obj, err := i.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", e.ErrImageSourceNotFound, bucket, key)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if i.maxImageSize > 0 && info.Size > i.maxImageSize {
		return nil, fmt.Errorf("%w: %s/%s is %d bytes", e.ErrFileTooLarge, bucket, key, info.Size)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return domain.NewRawImage(path.Base(key), info.ContentType, data), nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}
