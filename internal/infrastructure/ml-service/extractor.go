package ml_service

import (
	"context"
	"strconv"
	"time"

	"github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/internal/domain"
	"github.com/DRSN-tech/product-vision/pkg/e"
	"github.com/DRSN-tech/product-vision/pkg/jitter"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	extractMethod = "/vision.v1.FeatureExtractor/Extract"

	mdBatchSize = "x-batch-size"
	mdModel     = "x-model"
)

// GRPCExtractor — клиент удалённого сервера модели (ResNet-50 без классификационной головы).
// Батч передаётся одним blob'ом float32, ответ — N векторов размерности dim.
type GRPCExtractor struct {
	conn       grpc.ClientConnInterface
	model      string
	dim        int
	maxRetries int
	timeout    time.Duration
	backoff    *jitter.Backoff
	logger     logger.Logger
}

func NewGRPCExtractor(conn grpc.ClientConnInterface, cfg *cfg.ExtractorCfg, logger logger.Logger) *GRPCExtractor {
	return &GRPCExtractor{
		conn:       conn,
		model:      cfg.Model,
		dim:        cfg.VectorSize,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		backoff:    jitter.NewBackoff(cfg.BackoffBase, cfg.BackoffMax, jitter.DefaultJitter, 0),
		logger:     logger,
	}
}

// Extract выполняет инференс с повторами на временных ошибках транспорта.
func (x *GRPCExtractor) Extract(ctx context.Context, batch []domain.Tensor) ([]domain.Embedding, error) {
	const op = "GRPCExtractor.Extract"

	if len(batch) == 0 {
		return nil, e.Wrap(op, e.ErrBatchShapeMismatch)
	}

	payload, err := encodeBatch(batch)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	for attempt := 0; ; attempt++ {
		vectors, err := x.call(ctx, payload, len(batch))
		if err == nil {
			return vectors, nil
		}

		if !isRetryable(err) || attempt >= x.maxRetries {
			return nil, e.Wrap(op, err)
		}

		x.logger.Warnf("feature extraction failed, retrying (attempt %d/%d): %v", attempt+1, x.maxRetries, err)
		if err := x.backoff.Wait(ctx, attempt); err != nil {
			return nil, e.Wrap(op, err)
		}
	}
}

func (x *GRPCExtractor) call(ctx context.Context, payload []byte, n int) ([]domain.Embedding, error) {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		mdBatchSize, strconv.Itoa(n),
		mdModel, x.model,
	)

	resp := new(wrapperspb.BytesValue)
	if err := x.conn.Invoke(ctx, extractMethod, wrapperspb.Bytes(payload), resp); err != nil {
		return nil, err
	}

	return decodeEmbeddings(resp.GetValue(), n, x.dim)
}

func (x *GRPCExtractor) Dim() int {
	return x.dim
}

// Close закрывает соединение, если экстрактор им владеет.
func (x *GRPCExtractor) Close() error {
	if c, ok := x.conn.(*grpc.ClientConn); ok {
		return c.Close()
	}
	return nil
}

// isRetryable: ResourceExhausted не повторяется, это превышение лимита размера сообщения.
func isRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
