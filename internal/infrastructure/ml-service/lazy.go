package ml_service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Loader создаёт готовый к работе экстрактор.
type Loader func(ctx context.Context) (usecase.FeatureExtractor, error)

// LazyExtractor загружает экстрактор один раз на процесс при первом обращении.
// Неудачная загрузка не запоминается: следующий вызов попробует снова.
type LazyExtractor struct {
	mu      sync.Mutex
	current atomic.Pointer[usecase.FeatureExtractor]
	load    Loader
	logger  logger.Logger
}

func NewLazyExtractor(load Loader, logger logger.Logger) *LazyExtractor {
	return &LazyExtractor{load: load, logger: logger}
}

// Get возвращает загруженный экстрактор, при необходимости загружая его.
func (l *LazyExtractor) Get(ctx context.Context) (usecase.FeatureExtractor, error) {
	const op = "LazyExtractor.Get"

	if p := l.current.Load(); p != nil {
		return *p, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p := l.current.Load(); p != nil {
		return *p, nil
	}

	ext, err := l.load(ctx)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrExtractorNotReady, err))
	}

	l.current.Store(&ext)
	l.logger.Infof("feature extractor loaded")
	return ext, nil
}

// Warm загружает экстрактор заранее, чтобы первый запрос не платил за загрузку.
func (l *LazyExtractor) Warm(ctx context.Context) error {
	_, err := l.Get(ctx)
	return err
}

func (l *LazyExtractor) Extract(ctx context.Context, batch []domain.Tensor) ([]domain.Embedding, error) {
	ext, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return ext.Extract(ctx, batch)
}

func (l *LazyExtractor) Close() error {
	p := l.current.Load()
	if p == nil {
		return nil
	}
	if c, ok := (*p).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewGRPCLoader подключается к серверу модели и проверяет его пробным батчем из одного тензора:
// сервер должен вернуть один вектор настроенной размерности.
func NewGRPCLoader(cfg *cfg.ExtractorCfg, logger logger.Logger, opts ...grpc.DialOption) Loader {
	return func(ctx context.Context) (usecase.FeatureExtractor, error) {
		const op = "GRPCLoader"

		dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
		conn, err := grpc.NewClient(cfg.Addr, dialOpts...)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		ext := NewGRPCExtractor(conn, cfg, logger)
		if _, err := ext.Extract(ctx, []domain.Tensor{make(domain.Tensor, domain.TensorLen)}); err != nil {
			_ = conn.Close()
			return nil, e.Wrap(op, err)
		}

		return ext, nil
	}
}
