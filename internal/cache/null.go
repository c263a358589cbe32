package cache

import (
	"context"
	"time"
)

// Null never stores anything. Used when caching is disabled.
type Null struct{}

func NewNull() *Null { return &Null{} }

// Get always misses.
func (Null) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Null) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Null) Delete(context.Context, string) error { return nil }

func (Null) Close() error { return nil }

var _ Cache = (*Null)(nil)
