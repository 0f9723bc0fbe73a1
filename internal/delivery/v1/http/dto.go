package http

import (
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/usecase"
)

type SkippedImageDTO struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type EmbeddingResponse struct {
	Vector          []float32         `json:"vector"`
	ImagesProcessed int               `json:"images_processed"`
	Skipped         []SkippedImageDTO `json:"skipped"`
}

type ClusterRequest struct {
	Features [][]float64 `json:"features"`
	K        int         `json:"k"`
}

type ClusterResponse struct {
	Labels    []int       `json:"labels"`
	Centroids [][]float64 `json:"centroids"`
}

type ClassifyResponse struct {
	ClusterID   int64             `json:"cluster_id"`
	ClusterName string            `json:"cluster_name"`
	Version     int               `json:"version"`
	Distance    float64           `json:"distance"`
	Skipped     []SkippedImageDTO `json:"skipped"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func toSkippedDTO(skipped ...[]domain.SkippedImage) []SkippedImageDTO {
	out := []SkippedImageDTO{}
	for _, list := range skipped {
		for _, s := range list {
			out = append(out, SkippedImageDTO{Name: s.Name, Reason: s.Reason})
		}
	}
	return out
}

func toEmbeddingResponse(res *usecase.ExtractEmbeddingRes, dropped []domain.SkippedImage) *EmbeddingResponse {
	return &EmbeddingResponse{
		Vector:          res.Vector,
		ImagesProcessed: res.ImagesProcessed,
		Skipped:         toSkippedDTO(dropped, res.Skipped),
	}
}

func toClusterResponse(res *usecase.ClusterFeaturesRes) *ClusterResponse {
	return &ClusterResponse{
		Labels:    res.Labels,
		Centroids: res.Centroids,
	}
}

func toClassifyResponse(res *usecase.ClassifyRes, dropped []domain.SkippedImage) *ClassifyResponse {
	return &ClassifyResponse{
		ClusterID:   res.ClusterID,
		ClusterName: res.ClusterName,
		Version:     res.Version,
		Distance:    res.Distance,
		Skipped:     toSkippedDTO(dropped, res.Skipped),
	}
}
