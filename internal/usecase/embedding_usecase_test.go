package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/kmeans"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func embeddingCfg() EmbeddingUCCfg {
	return EmbeddingUCCfg{
		Policy:     "center-crop/v1",
		Model:      "resnet50",
		VectorSize: 2,
		KMeans:     kmeans.DefaultOptions(),
	}
}

func rawImages(names ...string) []*domain.RawImage {
	images := make([]*domain.RawImage, len(names))
	for i, name := range names {
		images[i] = domain.NewRawImage(name, "image/png", []byte(name))
	}
	return images
}

func TestExtractEmbedding_MeanOfSurvivors(t *testing.T) {
	executor := new(executorMock)
	images := rawImages("a.png", "broken.png", "b.png")

	executor.On("Execute", mock.Anything, images).Return(NewInferenceResult(
		[]domain.Embedding{{1, 2}, {3, 6}},
		[]int{0, 2},
		[]domain.SkippedImage{{Name: "broken.png", Reason: e.ErrUndecodableImage.Error()}},
	), nil)

	uc := NewEmbeddingUC(executor, nil, embeddingCfg(), logger.NewNopLogger())
	res, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(images))
	require.NoError(t, err)

	assert.Equal(t, domain.Embedding{2, 4}, res.Vector)
	assert.Equal(t, 2, res.ImagesProcessed)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "broken.png", res.Skipped[0].Name)
}

func TestExtractEmbedding_NoImages(t *testing.T) {
	uc := NewEmbeddingUC(new(executorMock), nil, embeddingCfg(), logger.NewNopLogger())

	_, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(nil))
	assert.ErrorIs(t, err, e.ErrNoImages)
}

func TestExtractEmbedding_NoValidImages(t *testing.T) {
	executor := new(executorMock)
	images := rawImages("x.heic")
	executor.On("Execute", mock.Anything, images).Return(
		NewInferenceResult(nil, nil, []domain.SkippedImage{{Name: "x.heic", Reason: "unsupported"}}),
		e.Wrap("Executor.Execute", e.ErrNoValidImages),
	)

	uc := NewEmbeddingUC(executor, nil, embeddingCfg(), logger.NewNopLogger())
	_, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(images))
	assert.ErrorIs(t, err, e.ErrNoValidImages)
}

func TestExtractEmbedding_InferenceFailure(t *testing.T) {
	executor := new(executorMock)
	images := rawImages("a.png")
	executor.On("Execute", mock.Anything, images).Return(nil, e.Wrap("x", e.ErrInference))

	uc := NewEmbeddingUC(executor, nil, embeddingCfg(), logger.NewNopLogger())
	_, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(images))
	assert.ErrorIs(t, err, e.ErrInference)
}

func TestExtractEmbedding_CacheHitsSkipInference(t *testing.T) {
	executor := new(executorMock)
	cache := new(cacheMock)
	images := rawImages("a.png", "b.png")

	uc := NewEmbeddingUC(executor, cache, embeddingCfg(), logger.NewNopLogger())
	keyA, keyB := uc.cacheKey(images[0]), uc.cacheKey(images[1])

	cache.On("GetEmbeddings", mock.Anything, []string{keyA, keyB}).
		Return(map[string]domain.Embedding{keyA: {0, 0}}, nil)
	executor.On("Execute", mock.Anything, []*domain.RawImage{images[1]}).
		Return(NewInferenceResult([]domain.Embedding{{4, 8}}, []int{0}, nil), nil)
	cache.On("SetEmbeddings", mock.Anything, map[string]domain.Embedding{keyB: {4, 8}}).Return(nil)

	res, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(images))
	require.NoError(t, err)

	assert.Equal(t, domain.Embedding{2, 4}, res.Vector)
	assert.Equal(t, 2, res.ImagesProcessed)
	assert.Empty(t, res.Skipped)
	cache.AssertExpectations(t)
	executor.AssertExpectations(t)
}

func TestExtractEmbedding_AllCached(t *testing.T) {
	executor := new(executorMock)
	cache := new(cacheMock)
	images := rawImages("a.png")

	uc := NewEmbeddingUC(executor, cache, embeddingCfg(), logger.NewNopLogger())
	key := uc.cacheKey(images[0])
	cache.On("GetEmbeddings", mock.Anything, []string{key}).Return(map[string]domain.Embedding{key: {1, 1}}, nil)

	res, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(images))
	require.NoError(t, err)
	assert.Equal(t, domain.Embedding{1, 1}, res.Vector)
	executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestExtractEmbedding_CacheErrorFallsBack(t *testing.T) {
	executor := new(executorMock)
	cache := new(cacheMock)
	images := rawImages("a.png")

	cache.On("GetEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	cache.On("SetEmbeddings", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	executor.On("Execute", mock.Anything, images).Return(NewInferenceResult([]domain.Embedding{{1, 3}}, []int{0}, nil), nil)

	uc := NewEmbeddingUC(executor, cache, embeddingCfg(), logger.NewNopLogger())
	res, err := uc.ExtractEmbedding(context.Background(), NewExtractEmbeddingReq(images))
	require.NoError(t, err)
	assert.Equal(t, domain.Embedding{1, 3}, res.Vector)
}

func TestCacheKey_DependsOnPolicyAndModel(t *testing.T) {
	image := rawImages("a.png")[0]

	base := NewEmbeddingUC(nil, nil, embeddingCfg(), logger.NewNopLogger())
	otherPolicy := embeddingCfg()
	otherPolicy.Policy = "pad-square/v1"
	otherModel := embeddingCfg()
	otherModel.Model = "resnet101"

	key := base.cacheKey(image)
	assert.Len(t, key, 64)
	assert.Equal(t, key, base.cacheKey(domain.NewRawImage("renamed.png", "", image.Data)))
	assert.NotEqual(t, key, NewEmbeddingUC(nil, nil, otherPolicy, logger.NewNopLogger()).cacheKey(image))
	assert.NotEqual(t, key, NewEmbeddingUC(nil, nil, otherModel, logger.NewNopLogger()).cacheKey(image))
}

func TestClusterFeatures(t *testing.T) {
	uc := NewEmbeddingUC(nil, nil, embeddingCfg(), logger.NewNopLogger())

	res, err := uc.ClusterFeatures(context.Background(), NewClusterFeaturesReq(
		[][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}}, 2,
	))
	require.NoError(t, err)

	require.Len(t, res.Labels, 4)
	require.Len(t, res.Centroids, 2)
	assert.Equal(t, res.Labels[0], res.Labels[1])
	assert.Equal(t, res.Labels[2], res.Labels[3])
	assert.NotEqual(t, res.Labels[0], res.Labels[2])
}

func TestClusterFeatures_KClamped(t *testing.T) {
	uc := NewEmbeddingUC(nil, nil, embeddingCfg(), logger.NewNopLogger())

	res, err := uc.ClusterFeatures(context.Background(), NewClusterFeaturesReq([][]float64{{1, 2}, {3, 4}}, 5))
	require.NoError(t, err)
	assert.Len(t, res.Centroids, 2)
	for _, l := range res.Labels {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 2)
	}
}

func TestClusterFeatures_Validation(t *testing.T) {
	uc := NewEmbeddingUC(nil, nil, embeddingCfg(), logger.NewNopLogger())

	cases := []struct {
		name     string
		features [][]float64
		k        int
		want     error
	}{
		{"empty features", nil, 2, e.ErrNoFeatures},
		{"zero k", [][]float64{{1}}, 0, e.ErrInvalidK},
		{"negative k", [][]float64{{1}}, -3, e.ErrInvalidK},
		{"ragged", [][]float64{{1, 2}, {1}}, 1, e.ErrDimensionMismatch},
		{"empty vectors", [][]float64{{}, {}}, 1, e.ErrStatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.ClusterFeatures(context.Background(), NewClusterFeaturesReq(tc.features, tc.k))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
