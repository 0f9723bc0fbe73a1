package app

import (
	"context"

	config "github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/kafka"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/loader"
	minioRepo "github.com/DRSN-tech/product-vision/internal/repository/minio"
	"github.com/DRSN-tech/product-vision/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/product-vision/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/product-vision/internal/repository/qdrant"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/clients"
	"github.com/DRSN-tech/product-vision/pkg/closer"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/jimlawless/whereami"
)

// Batch — зависимости команд CLI: извлечение вектора продукта и пересчёт кластеров.
type Batch struct {
	ProductFeatures usecase.ProductFeatureUC
	Clusters        usecase.ClusterUC

	logger logger.Logger
	closer *closer.Closer
	worker *kafka.OutboxWorker // nil без Kafka
}

// NewBatch требует настроенную базу (см. config.LoadBatch). MinIO, Qdrant и Kafka опциональны.
func NewBatch(ctx context.Context, cfg *config.Config, logger logger.Logger) (b *Batch, err error) {
	c := closer.NewCloser(cfg.Http.ShutdownTimeout)
	defer func() {
		if err != nil {
			if cerr := c.Close(context.Background()); cerr != nil {
				logger.Warnf("cleanup after failed start: %v", cerr)
			}
		}
	}()

	if !cfg.Db.Enabled() {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrMissingDBConfig)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := initPGDB(connectCtx, cfg.Db, c, logger)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// CLI обрабатывает один продукт за запуск, кэш ему не нужен
	pl, err := initPipeline(cfg, nil, c, logger)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var objects loader.ObjectDownloader
	if cfg.Minio.Enabled() {
		mc, err := clients.NewMinIOClient(cfg.Minio)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if err := clients.CheckBucket(connectCtx, mc, cfg.Minio.BucketName); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		objects = minioRepo.NewImageRepo(mc, cfg.Minio, cfg.Http.MaxImageSize)
	}
	imageLoader := loader.NewImageLoader(objects, logger, cfg.Inference.Workers, cfg.Http.MaxImageSize)

	var mirror usecase.VectorMirrorRepository
	if cfg.Qdrant.Enabled() {
		qc, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Add("qdrant", func(context.Context) error { return qc.Close() })

		if err := clients.EnsureCollection(connectCtx, qc); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		mirror = qdrantRepo.NewEmbeddingRepo(qc.Client, cfg.Qdrant)
	}

	featureRepo := pgdb.NewProductFeatureRepo(db.Pool, pgdbConv.NewProductFeatureConverterImpl())
	clusterRepo := pgdb.NewClusterRepo(db.Pool, pgdbConv.NewClusterConverterImpl())
	outboxRepo, worker := initOutbox(db, cfg, c, logger)

	policy := cfg.Preprocess.Policy.String()

	return &Batch{
		ProductFeatures: usecase.NewProductFeatureUC(
			imageLoader,
			pl.embeddings,
			featureRepo,
			mirror,
			policy,
			cfg.Extractor.Model,
			logger,
		),
		Clusters: usecase.NewClusterUC(
			featureRepo,
			clusterRepo,
			outboxRepo,
			pgdb.NewTransactor(db.Pool),
			usecase.ClusterUCCfg{
				Policy:            policy,
				VectorSize:        cfg.Extractor.VectorSize,
				RetentionVersions: cfg.Cluster.RetentionVersions,
				KMeans:            kmeansOptions(cfg.Cluster),
			},
			logger,
		),
		logger: logger,
		closer: c,
		worker: worker,
	}, nil
}

// PublishEvents отправляет в Kafka события, записанные в outbox. Без Kafka ничего не делает.
// Неотправленные события остаются в таблице и будут досланы сервисом.
func (b *Batch) PublishEvents(ctx context.Context) error {
	if b.worker == nil {
		return nil
	}

	if err := b.worker.Drain(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

func (b *Batch) Close(ctx context.Context) error {
	return b.closer.Close(ctx)
}
