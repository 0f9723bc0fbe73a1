package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type downloaderMock struct{ mock.Mock }

func (m *downloaderMock) Download(ctx context.Context, bucket string, key string) (*domain.RawImage, error) {
	args := m.Called(ctx, bucket, key)
	image, _ := args.Get(0).(*domain.RawImage)
	return image, args.Error(1)
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o600))
	return p
}

func TestImageLoader_LocalFilesKeepOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.png", 10)
	b := writeFile(t, dir, "b.jpg", 20)

	l := NewImageLoader(nil, logger.NewNopLogger(), 2, 0)
	images, skipped, err := l.Load(context.Background(), []domain.ImageRef{
		domain.ParseImageRef(b),
		domain.ParseImageRef(filepath.Join(dir, "missing.png")),
		domain.ParseImageRef(a),
	})
	require.NoError(t, err)

	require.Len(t, images, 2)
	assert.Equal(t, "b.jpg", images[0].Name)
	assert.Equal(t, "image/jpeg", images[0].MIMEType)
	assert.Equal(t, "a.png", images[1].Name)
	assert.Equal(t, 10, images[1].Size())

	require.Len(t, skipped, 1)
	assert.Equal(t, e.ErrImageSourceNotFound.Error(), skipped[0].Reason)
}

func TestImageLoader_TooLargeSkipped(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.png", 100)

	l := NewImageLoader(nil, logger.NewNopLogger(), 1, 50)
	images, skipped, err := l.Load(context.Background(), []domain.ImageRef{domain.ParseImageRef(big)})
	require.NoError(t, err)

	assert.Empty(t, images)
	require.Len(t, skipped, 1)
	assert.Equal(t, e.ErrFileTooLarge.Error(), skipped[0].Reason)
}

func TestImageLoader_Objects(t *testing.T) {
	objects := new(downloaderMock)
	objects.On("Download", mock.Anything, "photos", "p/1.webp").
		Return(domain.NewRawImage("1.webp", "application/octet-stream", []byte{1}), nil)
	objects.On("Download", mock.Anything, "", "gone.png").
		Return(nil, e.Wrap("stat", e.ErrImageSourceNotFound))

	l := NewImageLoader(objects, logger.NewNopLogger(), 4, 0)
	images, skipped, err := l.Load(context.Background(), []domain.ImageRef{
		domain.ParseImageRef("minio://photos/p/1.webp"),
		domain.ParseImageRef("s3://gone.png"),
	})
	require.NoError(t, err)

	require.Len(t, images, 1)
	assert.Equal(t, "image/webp", images[0].MIMEType)
	require.Len(t, skipped, 1)
	assert.Equal(t, "s3://gone.png", skipped[0].Name)
	objects.AssertExpectations(t)
}

func TestImageLoader_ObjectWithoutStorageSkipped(t *testing.T) {
	l := NewImageLoader(nil, logger.NewNopLogger(), 1, 0)
	images, skipped, err := l.Load(context.Background(), []domain.ImageRef{domain.ParseImageRef("s3://x.png")})
	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Len(t, skipped, 1)
}

func TestImageLoader_StorageErrorAborts(t *testing.T) {
	objects := new(downloaderMock)
	objects.On("Download", mock.Anything, "", "x.png").Return(nil, errors.New("connection reset"))

	l := NewImageLoader(objects, logger.NewNopLogger(), 1, 0)
	_, _, err := l.Load(context.Background(), []domain.ImageRef{domain.ParseImageRef("s3://x.png")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
