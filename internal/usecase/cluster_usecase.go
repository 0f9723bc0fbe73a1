package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/metrics"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/kmeans"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/DRSN-tech/product-vision/pkg/vecmath"
	"github.com/google/uuid"
)

// ClusterUseCase пересчитывает кластеризацию всего каталога и сохраняет её новой версией.
type ClusterUseCase struct {
	featureRepo ProductFeatureRepository
	clusterRepo ClusterRepository
	outboxRepo  OutboxRepository // nil, если Kafka не настроена
	transactor  Transactor
	cfg         ClusterUCCfg
	logger      logger.Logger
}

func NewClusterUC(
	featureRepo ProductFeatureRepository,
	clusterRepo ClusterRepository,
	outboxRepo OutboxRepository,
	transactor Transactor,
	cfg ClusterUCCfg,
	logger logger.Logger,
) *ClusterUseCase {
	return &ClusterUseCase{
		featureRepo: featureRepo,
		clusterRepo: clusterRepo,
		outboxRepo:  outboxRepo,
		transactor:  transactor,
		cfg:         cfg,
		logger:      logger,
	}
}

// RunClustering кластеризует все подходящие векторы продуктов и атомарно записывает новую версию.
// Записи с другой размерностью или политикой предобработки пропускаются.
func (c *ClusterUseCase) RunClustering(ctx context.Context, req *RunClusteringReq) (*RunClusteringRes, error) {
	const op = "ClusterUseCase.RunClustering"

	if req.K <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidK)
	}

	features, err := c.featureRepo.List(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	productIDs := make([]int64, 0, len(features))
	data := make([][]float64, 0, len(features))
	for i := range features {
		if !features[i].Conforms(c.cfg.VectorSize, c.cfg.Policy) {
			c.logger.Warnf("product %d skipped: dim=%d policy=%q", features[i].ProductID, len(features[i].Vector), features[i].PreprocessPolicy)
			continue
		}
		productIDs = append(productIDs, features[i].ProductID)
		data = append(data, vecmath.ToFloat64(features[i].Vector))
	}
	skippedProducts := len(features) - len(data)

	if len(data) == 0 {
		return nil, e.Wrap(op, e.ErrNoFeatures)
	}

	started := time.Now()
	result, err := kmeans.Fit(data, req.K, c.cfg.KMeans)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	metrics.ClusteringDuration.Observe(time.Since(started).Seconds())

	if result.K != req.K {
		c.logger.Infof("k reduced from %d to %d: only %d products", req.K, result.K, len(data))
	}

	assignment := &domain.ClusterAssignment{
		ProductIDs: productIDs,
		Labels:     result.Labels,
		Centroids:  result.Centroids,
	}

	var run *domain.ClusterRun
	err = c.transactor.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		run, err = c.clusterRepo.SaveRun(ctx, assignment, c.cfg.RetentionVersions)
		if err != nil {
			return err
		}

		return c.createEvent(ctx, run, result.K, len(productIDs))
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	c.logger.Infof("cluster version %d saved: k=%d products=%d skipped=%d inertia=%.4f",
		run.Version, result.K, len(productIDs), skippedProducts, result.Inertia)

	return NewRunClusteringRes(run, result.K, len(productIDs), skippedProducts), nil
}

// createEvent пишет событие о новой версии в outbox в той же транзакции.
func (c *ClusterUseCase) createEvent(ctx context.Context, run *domain.ClusterRun, k int, products int) error {
	if c.outboxRepo == nil {
		return nil
	}

	payload, err := json.Marshal(domain.ClusterVersionCreated{
		Version:   run.Version,
		K:         k,
		Products:  products,
		Policy:    c.cfg.Policy,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	event := NewOutboxEvent(uuid.NewString(), ClusterVersionCreated, strconv.Itoa(run.Version), payload)
	if _, err := c.outboxRepo.Create(ctx, event); err != nil {
		return err
	}

	return nil
}
