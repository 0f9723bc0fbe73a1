package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/product-vision/internal/usecase"
	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type outboxRepoMock struct{ mock.Mock }

func (m *outboxRepoMock) Create(ctx context.Context, event *usecase.OutboxEvent) (*usecase.OutboxEvent, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(*usecase.OutboxEvent), args.Error(1)
}

func (m *outboxRepoMock) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*usecase.OutboxEvent)
	return events, args.Error(1)
}

func (m *outboxRepoMock) MarkAsProcessed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type producerMock struct{ mock.Mock }

func (m *producerMock) WriteRawMessage(ctx context.Context, req *usecase.WriteRawMessageReq) error {
	return m.Called(ctx, req).Error(0)
}

func TestOutboxWorker_DrainSendsAndMarks(t *testing.T) {
	repo := new(outboxRepoMock)
	producer := new(producerMock)
	ctx := context.Background()

	events := []*usecase.OutboxEvent{
		{ID: 1, EventID: "a", AggregateKey: "3", Payload: []byte(`{"version":3}`)},
		{ID: 2, EventID: "b", AggregateKey: "4", Payload: []byte(`{"version":4}`)},
	}
	repo.On("GetAndMarkAsProcessing", ctx, outboxBatchSize).Return(events, nil).Once()
	repo.On("GetAndMarkAsProcessing", ctx, outboxBatchSize).Return(nil, nil).Once()
	producer.On("WriteRawMessage", ctx, usecase.NewWriteRawMessageReq("3", []byte(`{"version":3}`))).Return(nil)
	producer.On("WriteRawMessage", ctx, usecase.NewWriteRawMessageReq("4", []byte(`{"version":4}`))).Return(nil)
	repo.On("MarkAsProcessed", ctx, int64(1)).Return(nil)
	repo.On("MarkAsProcessed", ctx, int64(2)).Return(nil)

	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, "")
	require.NoError(t, w.Drain(ctx))

	repo.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestOutboxWorker_FailedSendStaysUnprocessed(t *testing.T) {
	repo := new(outboxRepoMock)
	producer := new(producerMock)
	ctx := context.Background()

	events := []*usecase.OutboxEvent{{ID: 7, EventID: "x", AggregateKey: "1", Payload: []byte("{}")}}
	repo.On("GetAndMarkAsProcessing", ctx, outboxBatchSize).Return(events, nil).Once()
	producer.On("WriteRawMessage", ctx, mock.Anything).Return(errors.New("dial tcp: connection refused"))

	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, "")
	require.NoError(t, w.Drain(ctx))

	repo.AssertNotCalled(t, "MarkAsProcessed", mock.Anything, mock.Anything)
	repo.AssertNumberOfCalls(t, "GetAndMarkAsProcessing", 1)
}

func TestOutboxWorker_DrainRepoError(t *testing.T) {
	repo := new(outboxRepoMock)
	ctx := context.Background()
	repo.On("GetAndMarkAsProcessing", ctx, outboxBatchSize).Return(nil, errors.New("db down"))

	w := NewOutboxWorker(repo, logger.NewNopLogger(), new(producerMock), "")
	assert.EqualError(t, w.Drain(ctx), "db down")
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("write tcp: Broken pipe")))
	assert.True(t, isRetryableError(errors.New("i/o timeout")))
	assert.False(t, isRetryableError(errors.New("message too large")))
	assert.False(t, isRetryableError(nil))
}
