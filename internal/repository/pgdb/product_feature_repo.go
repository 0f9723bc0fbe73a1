package pgdb

import (
	"context"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductFeatureRepo хранит агрегированные векторы продуктов, по одной записи на продукт.
type ProductFeatureRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductFeatureConverter
}

func NewProductFeatureRepo(pool *pgxpool.Pool, conv converter.ProductFeatureConverter) *ProductFeatureRepo {
	return &ProductFeatureRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert записывает вектор продукта. Повторная запись для того же продукта заменяет вектор (last write wins).
func (r *ProductFeatureRepo) Upsert(ctx context.Context, feature *domain.ProductFeature) (*domain.ProductFeature, error) {
	model, err := r.conv.ToModel(feature)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO product_features (product_id, feature_vector_json, preprocess_policy)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id)
		DO UPDATE SET
			feature_vector_json = EXCLUDED.feature_vector_json,
			preprocess_policy = EXCLUDED.preprocess_policy,
			created_at = NOW()
		RETURNING id, product_id, feature_vector_json, preprocess_policy, created_at;
	`

	var out converter.ProductFeatureModel
	err = conn(ctx, r.pool).QueryRow(ctx, query,
		model.ProductID,
		model.FeatureVectorJSON,
		model.PreprocessPolicy,
	).Scan(
		&out.ID,
		&out.ProductID,
		&out.FeatureVectorJSON,
		&out.PreprocessPolicy,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	entity, err := r.conv.ToEntity(&out)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return entity, nil
}

// List возвращает все векторы в порядке product_id. Порядок нужен для воспроизводимой кластеризации.
func (r *ProductFeatureRepo) List(ctx context.Context) ([]domain.ProductFeature, error) {
	query := `
		SELECT id, product_id, feature_vector_json, preprocess_policy, created_at
		FROM product_features
		ORDER BY product_id;
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var features []domain.ProductFeature
	for rows.Next() {
		var model converter.ProductFeatureModel
		if err := rows.Scan(
			&model.ID,
			&model.ProductID,
			&model.FeatureVectorJSON,
			&model.PreprocessPolicy,
			&model.CreatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		entity, err := r.conv.ToEntity(&model)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		features = append(features, *entity)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return features, nil
}
