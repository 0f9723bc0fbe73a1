package http

import (
	_ "github.com/DRSN-tech/product-vision/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/metrics"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	cfg    *cfg.HTTPConfig
	logger logger.Logger
}

func NewRouter(router *chi.Mux, cfg *cfg.HTTPConfig, logger logger.Logger) *Router {
	return &Router{router: router, cfg: cfg, logger: logger}
}

// Init регистрирует маршруты. classifyUC может быть nil: тогда /clusters/classify не регистрируется.
func (r *Router) Init(embeddingUC usecase.EmbeddingUC, classifyUC usecase.ClassifyUC, checks map[string]HealthCheck) {
	r.router.Use(middleware.Recoverer)
	r.router.Use(requestLogger(r.logger))
	r.router.Use(metrics.Middleware())

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.router.Handle("/metrics", promhttp.Handler())
	r.router.Get("/healthz", NewHealthHandler(checks).healthz)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerEmbeddingRoutes(v1, NewEmbeddingHandler(embeddingUC, r.cfg, r.logger))
		registerClusterRoutes(v1, NewClusterHandler(embeddingUC, classifyUC, r.cfg, r.logger))
	})
}

func registerEmbeddingRoutes(router chi.Router, h *EmbeddingHandler) {
	router.Post("/embeddings", h.extractEmbedding)
}

func registerClusterRoutes(router chi.Router, h *ClusterHandler) {
	router.Route("/clusters", func(cl chi.Router) {
		cl.Post("/", h.clusterFeatures)
		if h.classifyUC != nil {
			cl.Post("/classify", h.classify)
		}
	})
}
