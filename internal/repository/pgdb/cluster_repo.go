package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// clusterVersionLockKey — ключ advisory-блокировки, сериализующей выдачу номеров версий.
const clusterVersionLockKey int64 = 0x70726f64636c7573

// ClusterRepo хранит версии кластеризации: кластеры и принадлежность продуктов.
type ClusterRepo struct {
	pool *pgxpool.Pool
	conv converter.ClusterConverter
}

func NewClusterRepo(pool *pgxpool.Pool, conv converter.ClusterConverter) *ClusterRepo {
	return &ClusterRepo{
		pool: pool,
		conv: conv,
	}
}

// SaveRun записывает новую версию кластеризации. Требует транзакцию в контексте:
// номер версии, кластеры, принадлежность и очистка старых версий фиксируются вместе.
//
// Если retention > 0, удаляются версии <= новая - retention (вместе с принадлежностью).
func (r *ClusterRepo) SaveRun(ctx context.Context, assignment *domain.ClusterAssignment, retention int) (*domain.ClusterRun, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if len(assignment.ProductIDs) != len(assignment.Labels) {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%d products, %d labels", len(assignment.ProductIDs), len(assignment.Labels)))
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1);`, clusterVersionLockKey); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var version int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM product_clusters;`).Scan(&version); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	clusters, err := r.insertClusters(ctx, tx, assignment.Centroids, version)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	members, err := r.insertMembers(ctx, tx, assignment, clusters)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	run := &domain.ClusterRun{
		Version:  version,
		Clusters: clusters,
		Members:  members,
	}

	if retention > 0 && version-retention > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM product_clusters WHERE version <= $1;`, version-retention); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		run.PrunedUpTo = version - retention
	}

	return run, nil
}

func (r *ClusterRepo) insertClusters(ctx context.Context, tx pgx.Tx, centroids [][]float64, version int) ([]*domain.Cluster, error) {
	query := `
		INSERT INTO product_clusters (name, version, centroid_json, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	createdAt := time.Now().UTC()
	clusters := make([]*domain.Cluster, 0, len(centroids))
	for i, centroid := range centroids {
		cluster := domain.NewCluster(i, version, centroid)
		cluster.CreatedAt = createdAt

		model, err := r.conv.ToModel(cluster)
		if err != nil {
			return nil, err
		}

		if err := tx.QueryRow(ctx, query, model.Name, model.Version, model.CentroidJSON, model.CreatedAt).Scan(&cluster.ID); err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

// insertMembers вставляет принадлежность одним batch-запросом.
func (r *ClusterRepo) insertMembers(ctx context.Context, tx pgx.Tx, assignment *domain.ClusterAssignment, clusters []*domain.Cluster) (int, error) {
	query := `INSERT INTO product_cluster_members (product_cluster_id, product_id) VALUES ($1, $2);`

	batch := &pgx.Batch{}
	for i, productID := range assignment.ProductIDs {
		label := assignment.Labels[i]
		if label < 0 || label >= len(clusters) {
			return 0, fmt.Errorf("label %d of product %d is out of range [0, %d)", label, productID, len(clusters))
		}
		batch.Queue(query, clusters[label].ID, productID)
	}

	results := tx.SendBatch(ctx, batch)
	for range assignment.ProductIDs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, err
		}
	}

	if err := results.Close(); err != nil {
		return 0, err
	}

	return len(assignment.ProductIDs), nil
}

// LatestClusters возвращает кластеры последней версии. Пустой срез, если версий нет.
func (r *ClusterRepo) LatestClusters(ctx context.Context) ([]domain.Cluster, error) {
	query := `
		SELECT id, name, version, centroid_json, created_at
		FROM product_clusters
		WHERE version = (SELECT MAX(version) FROM product_clusters)
		ORDER BY id;
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var clusters []domain.Cluster
	for rows.Next() {
		var model converter.ClusterModel
		if err := rows.Scan(&model.ID, &model.Name, &model.Version, &model.CentroidJSON, &model.CreatedAt); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		entity, err := r.conv.ToEntity(&model)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		clusters = append(clusters, *entity)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return clusters, nil
}
