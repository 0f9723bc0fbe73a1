package converter

import (
	"encoding/json"
	"fmt"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/usecase"
)

// ProductFeatureConverter преобразует ProductFeature между domain и моделью PostgreSQL.
// Вектор хранится как JSON-массив чисел.
type ProductFeatureConverter interface {
	ToModel(entity *domain.ProductFeature) (*ProductFeatureModel, error)
	ToEntity(model *ProductFeatureModel) (*domain.ProductFeature, error)
}

// ClusterConverter преобразует Cluster между domain и моделью PostgreSQL.
type ClusterConverter interface {
	ToModel(entity *domain.Cluster) (*ClusterModel, error)
	ToEntity(model *ClusterModel) (*domain.Cluster, error)
}

// OutboxEventConverter преобразует OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

type ProductFeatureConverterImpl struct{}

func NewProductFeatureConverterImpl() *ProductFeatureConverterImpl {
	return &ProductFeatureConverterImpl{}
}

func (ProductFeatureConverterImpl) ToModel(entity *domain.ProductFeature) (*ProductFeatureModel, error) {
	data, err := json.Marshal(entity.Vector)
	if err != nil {
		return nil, fmt.Errorf("encode feature vector: %w", err)
	}

	var policy *string
	if entity.PreprocessPolicy != "" {
		p := entity.PreprocessPolicy
		policy = &p
	}

	return &ProductFeatureModel{
		ID:                entity.ID,
		ProductID:         entity.ProductID,
		FeatureVectorJSON: string(data),
		PreprocessPolicy:  policy,
		CreatedAt:         entity.CreatedAt,
	}, nil
}

func (ProductFeatureConverterImpl) ToEntity(model *ProductFeatureModel) (*domain.ProductFeature, error) {
	var vector domain.Embedding
	if err := json.Unmarshal([]byte(model.FeatureVectorJSON), &vector); err != nil {
		return nil, fmt.Errorf("decode feature vector of product %d: %w", model.ProductID, err)
	}

	entity := &domain.ProductFeature{
		ID:        model.ID,
		ProductID: model.ProductID,
		Vector:    vector,
		CreatedAt: model.CreatedAt,
	}
	if model.PreprocessPolicy != nil {
		entity.PreprocessPolicy = *model.PreprocessPolicy
	}

	return entity, nil
}

type ClusterConverterImpl struct{}

func NewClusterConverterImpl() *ClusterConverterImpl {
	return &ClusterConverterImpl{}
}

func (ClusterConverterImpl) ToModel(entity *domain.Cluster) (*ClusterModel, error) {
	model := &ClusterModel{
		ID:        entity.ID,
		Name:      entity.Name,
		Version:   entity.Version,
		CreatedAt: entity.CreatedAt,
	}

	if entity.Centroid != nil {
		data, err := json.Marshal(entity.Centroid)
		if err != nil {
			return nil, fmt.Errorf("encode centroid: %w", err)
		}
		s := string(data)
		model.CentroidJSON = &s
	}

	return model, nil
}

func (ClusterConverterImpl) ToEntity(model *ClusterModel) (*domain.Cluster, error) {
	entity := &domain.Cluster{
		ID:        model.ID,
		Name:      model.Name,
		Version:   model.Version,
		CreatedAt: model.CreatedAt,
	}

	if model.CentroidJSON != nil && *model.CentroidJSON != "" {
		if err := json.Unmarshal([]byte(*model.CentroidJSON), &entity.Centroid); err != nil {
			return nil, fmt.Errorf("decode centroid of cluster %d: %w", model.ID, err)
		}
	}

	return entity, nil
}

type OutboxEventConverterImpl struct{}

func NewOutboxEventConverterImpl() *OutboxEventConverterImpl {
	return &OutboxEventConverterImpl{}
}

func (OutboxEventConverterImpl) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:           entity.ID,
		EventID:      entity.EventID,
		EventType:    string(entity.EventType),
		AggregateKey: entity.AggregateKey,
		Payload:      entity.Payload,
		Status:       string(entity.Status),
		CreatedAt:    entity.CreatedAt,
		ProcessedAt:  entity.ProcessedAt,
	}
}

func (OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:           model.ID,
		EventID:      model.EventID,
		EventType:    usecase.OutboxEventType(model.EventType),
		AggregateKey: model.AggregateKey,
		Payload:      model.Payload,
		Status:       usecase.OutboxStatus(model.Status),
		CreatedAt:    model.CreatedAt,
		ProcessedAt:  model.ProcessedAt,
	}
}

func (c OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	out := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, c.ToEntity(m))
	}
	return out
}
