package inference

import (
	"context"
	"time"

	"github.com/DRSN-tech/product-vision/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Pool ограничивает число одновременно выполняемых CPU-задач.
// Задачи сверх лимита ждут своей очереди в порядке поступления.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int {
	return p.size
}

// Do выполняет fn на свободном слоте пула и ждёт завершения.
// При отмене ctx возвращает ctx.Err(), а fn дорабатывает и освобождает слот сама.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context)) error {
	queued := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	metrics.PoolWaitDuration.Observe(time.Since(queued).Seconds())

	done := make(chan struct{})
	go func() {
		defer p.sem.Release(1)
		defer close(done)
		fn(ctx)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
