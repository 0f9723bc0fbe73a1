//go:build integration

package pgdb

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/DRSN-tech/product-vision/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Запуск: TEST_DB_DSN=postgres://... go test -tags=integration ./internal/repository/pgdb/...
// Тесты очищают таблицы схемы, используйте отдельную базу.

func testDB(t *testing.T) *postgres.PgDatabase {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("set TEST_DB_DSN to run PostgreSQL tests")
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.RunMigrations(logger.NewNopLogger(), "file://../../../db/migrations"))

	_, err = db.Pool.Exec(ctx, `TRUNCATE product_cluster_members, product_clusters, product_features, outbox_events RESTART IDENTITY CASCADE;`)
	require.NoError(t, err)

	return db
}

func saveRun(t *testing.T, db *postgres.PgDatabase, repo *ClusterRepo, assignment *domain.ClusterAssignment, retention int) (*domain.ClusterRun, error) {
	t.Helper()

	var run *domain.ClusterRun
	err := NewTransactor(db.Pool).WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		run, err = repo.SaveRun(ctx, assignment, retention)
		return err
	})
	return run, err
}

func countRows(t *testing.T, db *postgres.PgDatabase, query string, args ...any) int {
	t.Helper()

	var n int
	require.NoError(t, db.Pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func twoClusters() *domain.ClusterAssignment {
	return &domain.ClusterAssignment{
		ProductIDs: []int64{10, 11, 12},
		Labels:     []int{0, 1, 0},
		Centroids:  [][]float64{{0, 1}, {1, 0}},
	}
}

func TestClusterRepo_SaveRunIncrementsVersion(t *testing.T) {
	db := testDB(t)
	repo := NewClusterRepo(db.Pool, converter.NewClusterConverterImpl())

	first, err := saveRun(t, db, repo, twoClusters(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 3, first.Members)
	require.Len(t, first.Clusters, 2)
	assert.Equal(t, "Cluster 1 (v1)", first.Clusters[0].Name)
	assert.NotZero(t, first.Clusters[0].ID)

	second, err := saveRun(t, db, repo, twoClusters(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Zero(t, second.PrunedUpTo)

	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM product_cluster_members WHERE product_cluster_id = $1;`, second.Clusters[0].ID))
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM product_cluster_members WHERE product_cluster_id = $1;`, second.Clusters[1].ID))

	latest, err := repo.LatestClusters(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	for _, c := range latest {
		assert.Equal(t, 2, c.Version)
	}
	assert.Equal(t, []float64{0, 1}, latest[0].Centroid)
	assert.Equal(t, []float64{1, 0}, latest[1].Centroid)
}

func TestClusterRepo_SaveRunPrunesOldVersions(t *testing.T) {
	db := testDB(t)
	repo := NewClusterRepo(db.Pool, converter.NewClusterConverterImpl())

	for i := 0; i < 2; i++ {
		_, err := saveRun(t, db, repo, twoClusters(), 2)
		require.NoError(t, err)
	}

	third, err := saveRun(t, db, repo, twoClusters(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Version)
	assert.Equal(t, 1, third.PrunedUpTo)

	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM product_clusters WHERE version = 1;`))
	assert.Equal(t, 4, countRows(t, db, `SELECT COUNT(*) FROM product_clusters;`))
	// принадлежность удалённой версии уходит каскадом
	assert.Equal(t, 6, countRows(t, db, `SELECT COUNT(*) FROM product_cluster_members;`))
}

func TestClusterRepo_SaveRunRollsBackOnBadLabel(t *testing.T) {
	db := testDB(t)
	repo := NewClusterRepo(db.Pool, converter.NewClusterConverterImpl())

	_, err := saveRun(t, db, repo, &domain.ClusterAssignment{
		ProductIDs: []int64{1, 2},
		Labels:     []int{0, 5},
		Centroids:  [][]float64{{1}},
	}, 0)
	require.Error(t, err)

	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM product_clusters;`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM product_cluster_members;`))
}

func TestClusterRepo_SaveRunRequiresTx(t *testing.T) {
	db := testDB(t)
	repo := NewClusterRepo(db.Pool, converter.NewClusterConverterImpl())

	_, err := repo.SaveRun(context.Background(), twoClusters(), 0)
	assert.True(t, errors.Is(err, e.ErrTransactionNotFound))
}

func TestClusterRepo_LatestClustersEmpty(t *testing.T) {
	db := testDB(t)
	repo := NewClusterRepo(db.Pool, converter.NewClusterConverterImpl())

	clusters, err := repo.LatestClusters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestProductFeatureRepo_UpsertReplacesVector(t *testing.T) {
	db := testDB(t)
	repo := NewProductFeatureRepo(db.Pool, converter.NewProductFeatureConverterImpl())
	ctx := context.Background()

	first, err := repo.Upsert(ctx, domain.NewProductFeature(7, domain.Embedding{1, 2}, "center-crop/v1"))
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, domain.NewProductFeature(7, domain.Embedding{3, 4}, "center-crop/v1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = repo.Upsert(ctx, domain.NewProductFeature(3, domain.Embedding{5, 6}, "center-crop/v1"))
	require.NoError(t, err)

	features, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, int64(3), features[0].ProductID)
	assert.Equal(t, int64(7), features[1].ProductID)
	assert.Equal(t, domain.Embedding{3, 4}, features[1].Vector)
}
