package usecase

import "context"

type EmbeddingUC interface {
	ExtractEmbedding(ctx context.Context, req *ExtractEmbeddingReq) (*ExtractEmbeddingRes, error)
	ClusterFeatures(ctx context.Context, req *ClusterFeaturesReq) (*ClusterFeaturesRes, error)
}

type ClassifyUC interface {
	Classify(ctx context.Context, req *ExtractEmbeddingReq) (*ClassifyRes, error)
}

type ProductFeatureUC interface {
	ExtractProductFeature(ctx context.Context, req *ExtractProductFeatureReq) (*ExtractProductFeatureRes, error)
}

type ClusterUC interface {
	RunClustering(ctx context.Context, req *RunClusteringReq) (*RunClusteringRes, error)
}
