// Package kv defines the key-value contract the session engine persists
// through and provides a Redis implementation of it.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a whole-value key-value store with string sets.
// Set overwrites the entire value; there is no compare-and-swap.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	AddToSet(ctx context.Context, setKey, member string) error
	RemoveFromSet(ctx context.Context, setKey string, members ...string) error
	ListSet(ctx context.Context, setKey string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
