package usecase

import (
	"context"
	"encoding/json"
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

func clusterCfg(retention int) ClusterUCCfg {
	return ClusterUCCfg{
		Policy:            testPolicy,
		VectorSize:        2,
		RetentionVersions: retention,
		KMeans:            kmeans.DefaultOptions(),
	}
}

func seedFeatures(t *testing.T, repo *memFeatureRepo, vectors map[int64]domain.Embedding) {
	t.Helper()
	for id, v := range vectors {
		_, err := repo.Upsert(context.Background(), domain.NewProductFeature(id, v, testPolicy))
		require.NoError(t, err)
	}
}

func newClusterUC(features *memFeatureRepo, clusters *memClusterRepo, outbox OutboxRepository, retention int) (*ClusterUseCase, *fakeTransactor) {
	tx := &fakeTransactor{repo: clusters}
	return NewClusterUC(features, clusters, outbox, tx, clusterCfg(retention), logger.NewNopLogger()), tx
}

func TestRunClustering_VersionsIncrease(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{
		1: {0, 0}, 2: {0, 1}, 3: {10, 10}, 4: {10, 11},
	})
	clusters := newMemClusterRepo()
	uc, tx := newClusterUC(features, clusters, nil, 0)

	first, err := uc.RunClustering(context.Background(), NewRunClusteringReq(2))
	require.NoError(t, err)
	second, err := uc.RunClustering(context.Background(), NewRunClusteringReq(2))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 2, tx.committed)
	assert.Equal(t, 4, first.Products)
	require.Len(t, first.Clusters, 2)
	assert.Equal(t, "Cluster 1 (v1)", first.Clusters[0].Name)
	assert.Equal(t, "Cluster 2 (v2)", second.Clusters[1].Name)

	// история не переписывается
	assert.Len(t, clusters.versions[1], 2)
	assert.Len(t, clusters.members[1], 4)
	assert.Len(t, clusters.members[2], 4)
}

func TestRunClustering_MembershipGroupsNearProducts(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{
		1: {0, 0}, 2: {0, 1}, 3: {10, 10}, 4: {10, 11},
	})
	clusters := newMemClusterRepo()
	uc, _ := newClusterUC(features, clusters, nil, 0)

	_, err := uc.RunClustering(context.Background(), NewRunClusteringReq(2))
	require.NoError(t, err)

	byProduct := map[int64]int64{}
	for _, m := range clusters.members[1] {
		byProduct[m.ProductID] = m.ClusterID
	}
	assert.Equal(t, byProduct[1], byProduct[2])
	assert.Equal(t, byProduct[3], byProduct[4])
	assert.NotEqual(t, byProduct[1], byProduct[3])
}

func TestRunClustering_KClampedToProducts(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{1: {1, 1}, 2: {2, 2}})
	uc, _ := newClusterUC(features, newMemClusterRepo(), nil, 0)

	res, err := uc.RunClustering(context.Background(), NewRunClusteringReq(5))
	require.NoError(t, err)
	assert.Equal(t, 2, res.K)
	assert.Len(t, res.Clusters, 2)
}

func TestRunClustering_SkipsNonConforming(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{1: {1, 1}, 2: {2, 2}})
	_, _ = features.Upsert(context.Background(), domain.NewProductFeature(3, domain.Embedding{1, 2, 3}, testPolicy))
	_, _ = features.Upsert(context.Background(), domain.NewProductFeature(4, domain.Embedding{1, 2}, "pad-square/v1"))
	_, _ = features.Upsert(context.Background(), domain.NewProductFeature(5, domain.Embedding{3, 3}, ""))
	uc, _ := newClusterUC(features, newMemClusterRepo(), nil, 0)

	res, err := uc.RunClustering(context.Background(), NewRunClusteringReq(1))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Products)
	assert.Equal(t, 2, res.SkippedProducts)
}

func TestRunClustering_Validation(t *testing.T) {
	uc, _ := newClusterUC(newMemFeatureRepo(), newMemClusterRepo(), nil, 0)

	_, err := uc.RunClustering(context.Background(), NewRunClusteringReq(0))
	assert.ErrorIs(t, err, e.ErrInvalidK)

	_, err = uc.RunClustering(context.Background(), NewRunClusteringReq(3))
	assert.ErrorIs(t, err, e.ErrNoFeatures)
}

func TestRunClustering_Retention(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{1: {0, 0}, 2: {5, 5}})
	clusters := newMemClusterRepo()
	uc, _ := newClusterUC(features, clusters, nil, 2)

	for range 3 {
		_, err := uc.RunClustering(context.Background(), NewRunClusteringReq(2))
		require.NoError(t, err)
	}

	assert.NotContains(t, clusters.versions, 1)
	assert.Contains(t, clusters.versions, 2)
	assert.Contains(t, clusters.versions, 3)
}

func TestRunClustering_WritesOutboxEvent(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{1: {0, 0}, 2: {5, 5}, 3: {6, 6}})
	outbox := new(outboxMock)

	var captured *OutboxEvent
	outbox.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*OutboxEvent)
	}).Return(&OutboxEvent{ID: 1}, nil)

	uc, _ := newClusterUC(features, newMemClusterRepo(), outbox, 0)
	_, err := uc.RunClustering(context.Background(), NewRunClusteringReq(2))
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, ClusterVersionCreated, captured.EventType)
	assert.Equal(t, "1", captured.AggregateKey)
	assert.Equal(t, Pending, captured.Status)
	assert.NotEmpty(t, captured.EventID)

	var payload domain.ClusterVersionCreated
	require.NoError(t, json.Unmarshal(captured.Payload, &payload))
	assert.Equal(t, 1, payload.Version)
	assert.Equal(t, 2, payload.K)
	assert.Equal(t, 3, payload.Products)
	assert.Equal(t, testPolicy, payload.Policy)
}

func TestRunClustering_OutboxFailureRollsBack(t *testing.T) {
	features := newMemFeatureRepo()
	seedFeatures(t, features, map[int64]domain.Embedding{1: {0, 0}, 2: {5, 5}})
	clusters := newMemClusterRepo()
	outbox := new(outboxMock)
	outbox.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("insert failed"))

	uc, tx := newClusterUC(features, clusters, outbox, 0)
	_, err := uc.RunClustering(context.Background(), NewRunClusteringReq(2))
	require.Error(t, err)

	assert.Empty(t, clusters.versions)
	assert.Equal(t, 0, tx.committed)
}

func TestRunClustering_Deterministic(t *testing.T) {
	vectors := map[int64]domain.Embedding{
		1: {0, 0}, 2: {1, 0}, 3: {0, 1}, 4: {8, 8}, 5: {9, 8}, 6: {4, 4},
	}

	run := func() *RunClusteringRes {
		features := newMemFeatureRepo()
		seedFeatures(t, features, vectors)
		uc, _ := newClusterUC(features, newMemClusterRepo(), nil, 0)
		res, err := uc.RunClustering(context.Background(), NewRunClusteringReq(3))
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	require.Len(t, a.Clusters, len(b.Clusters))
	for i := range a.Clusters {
		assert.Equal(t, a.Clusters[i].Centroid, b.Clusters[i].Centroid)
	}
}
