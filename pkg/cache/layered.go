package cache

import (
	"context"
	"errors"
	"time"
)

// Layered is a two-level cache: an in-process TTL map in front of an optional
// shared Service (Redis). Remote failures degrade to the local layer.
type Layered[V any] struct {
	local  *TTL[V]
	remote Service
	ttl    time.Duration
	onErr  func(op string, err error)
}

// NewLayered builds a layered cache. remote may be nil.
func NewLayered[V any](local *TTL[V], remote Service, ttl time.Duration, opts ...LayeredOption) *Layered[V] {
	cfg := &LayeredConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Layered[V]{local: local, remote: remote, ttl: ttl, onErr: cfg.OnRemoteError}
}

func (lc *Layered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := lc.local.Get(key); ok {
		return v, true
	}

	var zero V
	if lc.remote == nil {
		return zero, false
	}

	var v V
	if err := lc.remote.Get(ctx, key, &v); err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			lc.report("get", err)
		}
		return zero, false
	}

	// promote to L1
	lc.local.Set(key, v)
	return v, true
}

// Set writes through: local first so the value is visible even if Redis is down.
func (lc *Layered[V]) Set(ctx context.Context, key string, v V) {
	lc.local.Set(key, v)
	if lc.remote == nil {
		return
	}
	if err := lc.remote.Set(ctx, key, v, lc.ttl); err != nil {
		lc.report("set", err)
	}
}

func (lc *Layered[V]) Delete(ctx context.Context, key string) {
	lc.local.Delete(key)
	if lc.remote == nil {
		return
	}
	if err := lc.remote.Delete(ctx, key); err != nil {
		lc.report("delete", err)
	}
}

func (lc *Layered[V]) report(op string, err error) {
	if lc.onErr != nil {
		lc.onErr(op, err)
	}
}
