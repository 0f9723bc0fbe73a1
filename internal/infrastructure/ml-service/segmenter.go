package ml_service

import (
	"context"
	"time"

	"github.com/DRSN-tech/product-vision/pkg/e"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const removeBackgroundMethod = "/vision.v1.Segmenter/RemoveBackground"

// GRPCSegmenter удаляет фон на удалённом сервисе: исходные байты изображения на входе, PNG с альфа-каналом на выходе.
type GRPCSegmenter struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

func NewGRPCSegmenter(conn grpc.ClientConnInterface, timeout time.Duration) *GRPCSegmenter {
	return &GRPCSegmenter{conn: conn, timeout: timeout}
}

// DialSegmenter открывает отдельное соединение с сервисом удаления фона.
func DialSegmenter(addr string, timeout time.Duration) (*GRPCSegmenter, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, e.Wrap("DialSegmenter", err)
	}
	return NewGRPCSegmenter(conn, timeout), nil
}

func (s *GRPCSegmenter) RemoveBackground(ctx context.Context, data []byte) ([]byte, error) {
	const op = "GRPCSegmenter.RemoveBackground"

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp := new(wrapperspb.BytesValue)
	if err := s.conn.Invoke(ctx, removeBackgroundMethod, wrapperspb.Bytes(data), resp); err != nil {
		return nil, e.Wrap(op, err)
	}

	return resp.GetValue(), nil
}

func (s *GRPCSegmenter) Close() error {
	if c, ok := s.conn.(*grpc.ClientConn); ok {
		return c.Close()
	}
	return nil
}
