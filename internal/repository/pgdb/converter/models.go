package converter

import "time"

// ProductFeatureModel представляет запись таблицы product_features в PostgreSQL.
type ProductFeatureModel struct {
	ID                int64     `db:"id"`
	ProductID         int64     `db:"product_id"`
	FeatureVectorJSON string    `db:"feature_vector_json"`
	PreprocessPolicy  *string   `db:"preprocess_policy"`
	CreatedAt         time.Time `db:"created_at"`
}

// ClusterModel представляет запись таблицы product_clusters в PostgreSQL.
type ClusterModel struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Version      int       `db:"version"`
	CentroidJSON *string   `db:"centroid_json"`
	CreatedAt    time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID           int64      `db:"id"`
	EventID      string     `db:"event_id"`
	EventType    string     `db:"event_type"`
	AggregateKey string     `db:"aggregate_key"`
	Payload      []byte     `db:"payload"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
}
