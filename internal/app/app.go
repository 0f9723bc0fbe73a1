package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	config "github.com/DRSN-tech/product-vision/internal/cfg"
	v1Http "github.com/DRSN-tech/product-vision/internal/delivery/v1/http"
	"github.com/DRSN-tech/product-vision/internal/infrastructure/kafka"
	"github.com/DRSN-tech/product-vision/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/product-vision/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/closer"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

// App — HTTP-сервис эмбеддингов и кластеризации.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	closer  *closer.Closer
	server  *v1Http.Server
	worker  *kafka.OutboxWorker // nil без Kafka или без базы
	warm    func(ctx context.Context) error
	workCtx context.Context
	stop    context.CancelFunc
}

// NewApp поднимает зависимости сервиса. База, Redis и Kafka опциональны.
// При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, logger logger.Logger) (app *App, err error) {
	c := closer.NewCloser(cfg.Http.ShutdownTimeout)
	defer func() {
		if err != nil {
			if cerr := c.Close(context.Background()); cerr != nil {
				logger.Warnf("cleanup after failed start: %v", cerr)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	redisClient, cache, err := initCache(ctx, cfg.Redis, c, logger)
	if err != nil {
		logger.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	pl, err := initPipeline(cfg, cache, c, logger)
	if err != nil {
		logger.Errorf(err, "failed to initialize inference pipeline")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	checks := map[string]v1Http.HealthCheck{
		"extractor": pl.extractor.Warm,
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	var (
		classifyUC usecase.ClassifyUC
		worker     *kafka.OutboxWorker
	)
	if cfg.Db.Enabled() {
		db, err := initPGDB(ctx, cfg.Db, c, logger)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		checks["postgres"] = db.Ping

		clusterRepo := pgdb.NewClusterRepo(db.Pool, pgdbConv.NewClusterConverterImpl())
		classifyUC = usecase.NewClassifyUC(pl.embeddings, clusterRepo, logger)

		// события пишет CLI; сервис досылает то, что CLI не смог отправить
		_, worker = initOutbox(db, cfg, c, logger)
	} else {
		logger.Infof("database is not configured, classify endpoint disabled")
	}

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, cfg.Http, logger)
	router.Init(pl.embeddings, classifyUC, checks)

	workCtx, stop := context.WithCancel(context.Background())

	return &App{
		cfg:     cfg,
		logger:  logger,
		closer:  c,
		server:  v1Http.NewServer(r, cfg.Http),
		worker:  worker,
		warm:    pl.extractor.Warm,
		workCtx: workCtx,
		stop:    stop,
	}, nil
}

// Run прогревает экстрактор, запускает HTTP-сервер и блокируется до сигнала или ошибки сервера.
func (a *App) Run() error {
	warmCtx, warmCancel := context.WithTimeout(a.workCtx, a.cfg.Extractor.Timeout)
	if err := a.warm(warmCtx); err != nil {
		// экстрактор загрузится при первом запросе
		a.logger.Warnf("feature extractor is not ready yet: %v", err)
	}
	warmCancel()

	if a.worker != nil {
		a.worker.Start(a.workCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on %s", a.server.Addr())
		if err := a.server.Run(); err != nil {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("received shutdown signal, stopping gracefully...")
	}

	a.shutdown()

	if appErr != nil {
		return e.Wrap(whereami.WhereAmI(), appErr)
	}
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Http.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	a.stop()
	if a.worker != nil {
		a.worker.Stop()
	}

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Warnf("%v", err)
	}

	a.logger.Infof("application shutdown complete")
}
