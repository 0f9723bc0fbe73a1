package usecase

import (
	"time"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/kmeans"
)

// EMBEDDING USECASE

// ExtractEmbeddingReq — изображения одного продукта, загруженные через multipart/form-data.
type ExtractEmbeddingReq struct {
	Images []*domain.RawImage
}

// ExtractEmbeddingRes — агрегированный вектор и список пропущенных изображений.
type ExtractEmbeddingRes struct {
	Vector          domain.Embedding
	ImagesProcessed int
	Skipped         []domain.SkippedImage
}

// ClusterFeaturesReq — произвольные векторы для кластеризации по запросу.
type ClusterFeaturesReq struct {
	Features [][]float64
	K        int
}

type ClusterFeaturesRes struct {
	Labels    []int
	Centroids [][]float64
}

// ClassifyRes — ближайший кластер последней версии.
type ClassifyRes struct {
	ClusterID   int64
	ClusterName string
	Version     int
	Distance    float64 // квадрат евклидова расстояния до центроида
	Skipped     []domain.SkippedImage
}

// EmbeddingUCCfg — параметры, от которых зависит вектор изображения.
type EmbeddingUCCfg struct {
	Policy     string
	Model      string
	VectorSize int
	KMeans     kmeans.Options
}

// PRODUCT FEATURE USECASE

type ExtractProductFeatureReq struct {
	ProductID int64
	Images    []string // локальные пути, s3://key или minio://bucket/key
}

type ExtractProductFeatureRes struct {
	ProductID       int64
	ImagesProcessed int
	Dim             int
	Skipped         []domain.SkippedImage
	Mirrored        bool
}

// CLUSTER USECASE

type RunClusteringReq struct {
	K int
}

type RunClusteringRes struct {
	Version         int
	K               int
	Products        int
	SkippedProducts int // записи с другой размерностью или политикой
	Clusters        []*domain.Cluster
	PrunedUpTo      int
}

type ClusterUCCfg struct {
	Policy            string
	VectorSize        int
	RetentionVersions int
	KMeans            kmeans.Options
}

// INFRASTRUCTURE

// InferenceResult — векторы выживших изображений. Embeddings[i] относится к входному изображению Indices[i].
type InferenceResult struct {
	Embeddings []domain.Embedding
	Indices    []int
	Skipped    []domain.SkippedImage
}

// MAPPERS

func NewExtractEmbeddingReq(images []*domain.RawImage) *ExtractEmbeddingReq {
	return &ExtractEmbeddingReq{Images: images}
}

func NewExtractEmbeddingRes(vector domain.Embedding, processed int, skipped []domain.SkippedImage) *ExtractEmbeddingRes {
	if skipped == nil {
		skipped = []domain.SkippedImage{}
	}
	return &ExtractEmbeddingRes{
		Vector:          vector,
		ImagesProcessed: processed,
		Skipped:         skipped,
	}
}

func NewClusterFeaturesReq(features [][]float64, k int) *ClusterFeaturesReq {
	return &ClusterFeaturesReq{Features: features, K: k}
}

func NewClusterFeaturesRes(labels []int, centroids [][]float64) *ClusterFeaturesRes {
	return &ClusterFeaturesRes{Labels: labels, Centroids: centroids}
}

func NewClassifyRes(cluster *domain.Cluster, distance float64, skipped []domain.SkippedImage) *ClassifyRes {
	return &ClassifyRes{
		ClusterID:   cluster.ID,
		ClusterName: cluster.Name,
		Version:     cluster.Version,
		Distance:    distance,
		Skipped:     skipped,
	}
}

func NewExtractProductFeatureReq(productID int64, images []string) *ExtractProductFeatureReq {
	return &ExtractProductFeatureReq{ProductID: productID, Images: images}
}

func NewRunClusteringReq(k int) *RunClusteringReq {
	return &RunClusteringReq{K: k}
}

func NewInferenceResult(embeddings []domain.Embedding, indices []int, skipped []domain.SkippedImage) *InferenceResult {
	return &InferenceResult{
		Embeddings: embeddings,
		Indices:    indices,
		Skipped:    skipped,
	}
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const ClusterVersionCreated OutboxEventType = "cluster_version_created"

// OutboxEvent — событие, ожидающее отправки в брокер.
type OutboxEvent struct {
	ID           int64
	EventID      string
	EventType    OutboxEventType
	AggregateKey string // ключ сообщения Kafka
	Payload      []byte
	Status       OutboxStatus
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// WriteRawMessageReq — готовое к отправке сообщение.
type WriteRawMessageReq struct {
	Key     string
	Payload []byte
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, key string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		AggregateKey: key,
		Payload:      payload,
		Status:       Pending,
		CreatedAt:    time.Now().UTC(),
	}
}

func NewWriteRawMessageReq(key string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{Key: key, Payload: payload}
}

func NewExtractProductFeatureRes(feature *domain.ProductFeature, processed int, skipped []domain.SkippedImage, mirrored bool) *ExtractProductFeatureRes {
	if skipped == nil {
		skipped = []domain.SkippedImage{}
	}
	return &ExtractProductFeatureRes{
		ProductID:       feature.ProductID,
		ImagesProcessed: processed,
		Dim:             len(feature.Vector),
		Skipped:         skipped,
		Mirrored:        mirrored,
	}
}

func NewRunClusteringRes(run *domain.ClusterRun, k int, products int, skippedProducts int) *RunClusteringRes {
	return &RunClusteringRes{
		Version:         run.Version,
		K:               k,
		Products:        products,
		SkippedProducts: skippedProducts,
		Clusters:        run.Clusters,
		PrunedUpTo:      run.PrunedUpTo,
	}
}
