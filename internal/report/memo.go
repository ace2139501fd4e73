package report

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// memo caches successful results by key for the lifetime of a Session.
// Concurrent lookups of the same key share one call; failures are not kept.
// The shared call is detached from any single caller's cancellation and
// bounded by timeout instead.
type memo[V any] struct {
	mu      sync.RWMutex
	values  map[string]V
	group   singleflight.Group
	timeout time.Duration
}

func newMemo[V any](timeout time.Duration) *memo[V] {
	return &memo[V]{values: make(map[string]V), timeout: timeout}
}

// get returns the cached value for key, or runs fetch once and caches it.
func (m *memo[V]) get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if ok {
		return v, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.values[key] = v
		m.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (m *memo[V]) forget() {
	m.mu.Lock()
	clear(m.values)
	m.mu.Unlock()
}
