package app

import (
	"context"
	"time"

	config "github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/inference"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/kafka"
	ml_service "github.com/DRSN-tech/product-vision/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/preprocess"
	"github.com/DRSN-tech/product-vision/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/product-vision/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-vision/internal/repository/redis"
	redisConv "github.com/DRSN-tech/product-vision/internal/repository/redis/converter"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/clients"
	"github.com/DRSN-tech/product-vision/pkg/closer"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/kmeans"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/DRSN-tech/product-vision/pkg/postgres"
	"github.com/jimlawless/whereami"
)

const (
	connectTimeout          = 10 * time.Second
	outboxProcessingTimeout = time.Minute
	kafkaTopicTimeout       = 10 * time.Second
)

// pipeline — общий для сервиса и CLI путь изображение → вектор.
type pipeline struct {
	extractor  *ml_service.LazyExtractor
	embeddings *usecase.EmbeddingUseCase
}

func kmeansOptions(cfg *config.ClusterCfg) kmeans.Options {
	return kmeans.Options{
		Seed:          cfg.Seed,
		Restarts:      cfg.Restarts,
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
	}
}

// initPipeline собирает нормализатор, пул инференса и ленивый экстрактор.
// cache может быть nil.
func initPipeline(cfg *config.Config, cache usecase.EmbeddingCacheRepository, c *closer.Closer, logger logger.Logger) (*pipeline, error) {
	var isolator preprocess.ForegroundIsolator
	if cfg.Preprocess.BackgroundRemoval {
		segmenter, err := ml_service.DialSegmenter(cfg.Preprocess.SegmenterAddr, cfg.Extractor.Timeout)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Add("segmenter", func(context.Context) error { return segmenter.Close() })
		isolator = segmenter
		logger.Infof("background removal enabled, segmenter at %s", cfg.Preprocess.SegmenterAddr)
	}

	normalizer := preprocess.NewNormalizer(cfg.Preprocess.Policy, isolator, logger,
		preprocess.WithMaxPixels(cfg.Preprocess.MaxPixels))

	extractor := ml_service.NewLazyExtractor(ml_service.NewGRPCLoader(cfg.Extractor, logger), logger)
	c.Add("feature extractor", func(context.Context) error { return extractor.Close() })

	executor := inference.NewExecutor(inference.NewPool(cfg.Inference.Workers), normalizer, extractor, logger)

	embeddings := usecase.NewEmbeddingUC(executor, cache, usecase.EmbeddingUCCfg{
		Policy:     cfg.Preprocess.Policy.String(),
		Model:      cfg.Extractor.Model,
		VectorSize: cfg.Extractor.VectorSize,
		KMeans:     kmeansOptions(cfg.Cluster),
	}, logger)

	return &pipeline{extractor: extractor, embeddings: embeddings}, nil
}

func initPGDB(ctx context.Context, cfg *config.PGDBCfg, c *closer.Closer, logger logger.Logger) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.DSN)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	c.AddSimple("postgres", db.Close)

	if err := db.RunMigrations(logger, cfg.MigrationsSource); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// initCache возвращает nil, если Redis не настроен.
func initCache(ctx context.Context, cfg *config.RedisCfg, c *closer.Closer, logger logger.Logger) (*clients.RedisClient, usecase.EmbeddingCacheRepository, error) {
	if !cfg.Enabled() {
		logger.Infof("redis is not configured, embedding cache disabled")
		return nil, nil, nil
	}

	client := clients.NewRedisClient(cfg)
	c.Add("redis", func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return nil, nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return client, redis.NewCacheRepo(client, redisConv.NewEmbeddingConverterImpl(), cfg, logger), nil
}

// initOutbox возвращает nil-репозиторий и nil-воркер, если Kafka не настроена.
func initOutbox(db *postgres.PgDatabase, cfg *config.Config, c *closer.Closer, logger logger.Logger) (usecase.OutboxRepository, *kafka.OutboxWorker) {
	if !cfg.Kafka.Enabled() {
		logger.Infof("kafka is not configured, cluster version events disabled")
		return nil, nil
	}

	producer := kafka.NewProducer(logger, cfg.Kafka)
	c.Add("kafka producer", func(context.Context) error { return producer.Close() })

	if err := producer.EnsureTopic(kafkaTopicTimeout); err != nil {
		logger.Warnf("failed to ensure kafka topic %s: %v", cfg.Kafka.Topic, err)
	}

	repo := pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.NewOutboxEventConverterImpl(), outboxProcessingTimeout)
	worker := kafka.NewOutboxWorker(repo, logger, producer, cfg.Db.DSN)

	return repo, worker
}
