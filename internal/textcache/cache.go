// Package textcache stores submitted text under short-lived opaque ids so
// large payloads do not have to be resent on every synthesis call.
package textcache

import (
	"context"
	"errors"
	"time"
)

// Defaults applied by the constructors when the caller passes zero values.
const (
	DefaultTTL      = 600 * time.Second
	DefaultCapacity = 1000
)

// ErrNotFound is returned by Get for ids that were never stored, have expired,
// or were evicted. Callers treat it as a recoverable condition.
var ErrNotFound = errors.New("textcache: id not found")

// Cache maps opaque ids to text payloads with a fixed time-to-live. Reads do
// not refresh the TTL. Implementations are safe for concurrent use.
type Cache interface {
	// Put stores text under a fresh random id and returns the id.
	Put(ctx context.Context, text string) (string, error)

	// Get returns the text stored under id, or ErrNotFound if the id is
	// unknown, expired or evicted.
	Get(ctx context.Context, id string) (string, error)

	// ListIDs returns all currently live ids in no particular order.
	ListIDs(ctx context.Context) ([]string, error)
}
