// Package jitter добавляет случайность в интервалы повторных попыток,
// чтобы клиенты не повторяли запросы к одному сервису синхронно.
package jitter

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Backoff вычисляет экспоненциальные задержки с джиттером.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff создаёт Backoff с собственным генератором.
// seed == 0 означает недетерминированный генератор.
func NewBackoff(base, max time.Duration, factor float64, seed int64) *Backoff {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Backoff{
		Base:   base,
		Max:    max,
		Factor: factor,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Delay возвращает задержку перед попыткой attempt (нумерация с нуля).
// Результат находится в диапазоне [d, d*(1+Factor)], где d = min(Base*2^attempt, Max).
func (b *Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}

	b.mu.Lock()
	extra := b.rng.Float64() * b.Factor * float64(d)
	b.mu.Unlock()

	return d + time.Duration(extra)
}

// Wait ждёт Delay(attempt) или отмены контекста.
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
