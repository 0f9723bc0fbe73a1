package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "product_vision"

var (
	InferenceBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_batch_size",
			Help:      "Number of tensors sent to the feature extractor in one call",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Feature extractor call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	ImagesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_skipped_total",
			Help:      "Images excluded from aggregation",
		},
		[]string{"reason"},
	)

	PoolWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_pool_wait_seconds",
			Help:      "Time a job waited for a free inference worker",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ClusteringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clustering_duration_seconds",
			Help:      "k-means fit duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(
		InferenceBatchSize,
		InferenceDuration,
		ImagesSkippedTotal,
		PoolWaitDuration,
		EmbeddingCacheTotal,
		ClusteringDuration,
	)
}

func ObserveInference(batch int, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	InferenceBatchSize.Observe(float64(batch))
	InferenceDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

func CacheResult(hit bool) {
	if hit {
		EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	EmbeddingCacheTotal.WithLabelValues("miss").Inc()
}
