package usecase

import (
	"context"
	"maps"
	"slices"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/stretchr/testify/mock"
)

type executorMock struct{ mock.Mock }

func (m *executorMock) Execute(ctx context.Context, images []*domain.RawImage) (*InferenceResult, error) {
	args := m.Called(ctx, images)
	res, _ := args.Get(0).(*InferenceResult)
	return res, args.Error(1)
}

type cacheMock struct{ mock.Mock }

func (m *cacheMock) GetEmbeddings(ctx context.Context, keys []string) (map[string]domain.Embedding, error) {
	args := m.Called(ctx, keys)
	res, _ := args.Get(0).(map[string]domain.Embedding)
	return res, args.Error(1)
}

func (m *cacheMock) SetEmbeddings(ctx context.Context, entries map[string]domain.Embedding) error {
	return m.Called(ctx, entries).Error(0)
}

type embeddingUCMock struct{ mock.Mock }

func (m *embeddingUCMock) ExtractEmbedding(ctx context.Context, req *ExtractEmbeddingReq) (*ExtractEmbeddingRes, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ExtractEmbeddingRes)
	return res, args.Error(1)
}

func (m *embeddingUCMock) ClusterFeatures(ctx context.Context, req *ClusterFeaturesReq) (*ClusterFeaturesRes, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ClusterFeaturesRes)
	return res, args.Error(1)
}

type loaderMock struct{ mock.Mock }

func (m *loaderMock) Load(ctx context.Context, refs []domain.ImageRef) ([]*domain.RawImage, []domain.SkippedImage, error) {
	args := m.Called(ctx, refs)
	images, _ := args.Get(0).([]*domain.RawImage)
	skipped, _ := args.Get(1).([]domain.SkippedImage)
	return images, skipped, args.Error(2)
}

type mirrorMock struct{ mock.Mock }

func (m *mirrorMock) Upsert(ctx context.Context, point *domain.QdrantPoint) error {
	return m.Called(ctx, point).Error(0)
}

type outboxMock struct{ mock.Mock }

func (m *outboxMock) Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	args := m.Called(ctx, event)
	res, _ := args.Get(0).(*OutboxEvent)
	return res, args.Error(1)
}

func (m *outboxMock) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	res, _ := args.Get(0).([]*OutboxEvent)
	return res, args.Error(1)
}

func (m *outboxMock) MarkAsProcessed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// memFeatureRepo — хранилище векторов в памяти с семантикой upsert по product_id.
type memFeatureRepo struct {
	rows   map[int64]domain.ProductFeature
	nextID int64
	err    error
}

func newMemFeatureRepo() *memFeatureRepo {
	return &memFeatureRepo{rows: map[int64]domain.ProductFeature{}}
}

func (r *memFeatureRepo) Upsert(_ context.Context, feature *domain.ProductFeature) (*domain.ProductFeature, error) {
	if r.err != nil {
		return nil, r.err
	}
	stored := *feature
	if prev, ok := r.rows[feature.ProductID]; ok {
		stored.ID = prev.ID
	} else {
		r.nextID++
		stored.ID = r.nextID
	}
	r.rows[feature.ProductID] = stored
	return &stored, nil
}

func (r *memFeatureRepo) List(_ context.Context) ([]domain.ProductFeature, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.ProductFeature, 0, len(r.rows))
	for _, id := range slices.Sorted(maps.Keys(r.rows)) {
		out = append(out, r.rows[id])
	}
	return out, nil
}

// memClusterRepo имитирует версионирование: max+1, история не переписывается.
type memClusterRepo struct {
	versions map[int][]domain.Cluster
	members  map[int][]domain.ClusterMembership
	nextID   int64
	saveErr  error
}

func newMemClusterRepo() *memClusterRepo {
	return &memClusterRepo{
		versions: map[int][]domain.Cluster{},
		members:  map[int][]domain.ClusterMembership{},
	}
}

func (r *memClusterRepo) latestVersion() int {
	latest := 0
	for v := range r.versions {
		latest = max(latest, v)
	}
	return latest
}

func (r *memClusterRepo) SaveRun(_ context.Context, a *domain.ClusterAssignment, retention int) (*domain.ClusterRun, error) {
	if r.saveErr != nil {
		return nil, r.saveErr
	}

	version := r.latestVersion() + 1
	run := &domain.ClusterRun{Version: version}
	ids := make([]int64, len(a.Centroids))
	for i, c := range a.Centroids {
		r.nextID++
		cluster := domain.NewCluster(i, version, c)
		cluster.ID = r.nextID
		ids[i] = cluster.ID
		r.versions[version] = append(r.versions[version], *cluster)
		run.Clusters = append(run.Clusters, cluster)
	}
	for i, pid := range a.ProductIDs {
		r.members[version] = append(r.members[version], domain.ClusterMembership{ClusterID: ids[a.Labels[i]], ProductID: pid})
	}
	run.Members = len(a.ProductIDs)

	if retention > 0 && version-retention > 0 {
		for v := range r.versions {
			if v <= version-retention {
				delete(r.versions, v)
				delete(r.members, v)
			}
		}
		run.PrunedUpTo = version - retention
	}

	return run, nil
}

func (r *memClusterRepo) LatestClusters(_ context.Context) ([]domain.Cluster, error) {
	return r.versions[r.latestVersion()], nil
}

// fakeTransactor откатывает изменения memClusterRepo при ошибке fn.
type fakeTransactor struct {
	repo      *memClusterRepo
	committed int
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := map[int][]domain.Cluster{}
	for v, c := range t.repo.versions {
		snapshot[v] = c
	}
	if err := fn(ctx); err != nil {
		t.repo.versions = snapshot
		return err
	}
	t.committed++
	return nil
}
