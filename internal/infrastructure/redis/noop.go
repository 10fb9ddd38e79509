package redis

import (
	"context"
	"time"
)

// Noop stands in when no Redis address is configured: every read misses and
// every lock is granted.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, error) { return "", ErrKeyNotFound }

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Noop) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return true, nil
}

func (Noop) Del(context.Context, ...string) error { return nil }

func (Noop) Close() error { return nil }
