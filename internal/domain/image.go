package domain

import "strings"

// RawImage — загруженное изображение до декодирования. Живёт только в рамках запроса.
type RawImage struct {
	Name     string // имя файла для диагностики
	MIMEType string // заявленный тип, может быть пустым
	Data     []byte
}

func NewRawImage(name string, mimeType string, data []byte) *RawImage {
	return &RawImage{
		Name:     name,
		MIMEType: mimeType,
		Data:     data,
	}
}

func (r *RawImage) Size() int {
	return len(r.Data)
}

// ImageSourceKind — откуда batch-режим читает изображение
type ImageSourceKind string

const (
	ImageSourceLocal  ImageSourceKind = "local"
	ImageSourceObject ImageSourceKind = "object"
)

// ImageRef описывает изображение в локальной ФС или в S3-совместимом хранилище.
// Bucket пуст, если используется бакет по умолчанию.
type ImageRef struct {
	Kind      ImageSourceKind
	Path      string
	Bucket    string
	ObjectKey string
}

// ParseImageRef разбирает путь вида "/path/to/file.jpg", "s3://key" или "minio://bucket/key".
func ParseImageRef(raw string) ImageRef {
	switch {
	case strings.HasPrefix(raw, "s3://"):
		return ImageRef{Kind: ImageSourceObject, Path: raw, ObjectKey: strings.TrimPrefix(raw, "s3://")}
	case strings.HasPrefix(raw, "minio://"):
		rest := strings.TrimPrefix(raw, "minio://")
		bucket, key, found := strings.Cut(rest, "/")
		if !found {
			return ImageRef{Kind: ImageSourceObject, Path: raw, ObjectKey: rest}
		}
		return ImageRef{Kind: ImageSourceObject, Path: raw, Bucket: bucket, ObjectKey: key}
	default:
		return ImageRef{Kind: ImageSourceLocal, Path: raw}
	}
}

// SkippedImage — изображение, исключённое из агрегации, с причиной.
type SkippedImage struct {
	Name   string
	Reason string
}
