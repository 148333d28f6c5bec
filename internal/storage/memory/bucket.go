// Package memory holds shards in process memory. Nothing survives a restart,
// which makes it suitable for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Bucket is an in-memory blob.Bucket.
type Bucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewBucket creates an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{objects: make(map[string][]byte)}
}

// Put stores a copy of data under name.
func (b *Bucket) Put(_ context.Context, name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("object name is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the named object.
func (b *Bucket) Get(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %q not found", name)
	}
	return append([]byte(nil), data...), nil
}

// List returns the sorted names under prefix.
func (b *Bucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (b *Bucket) Close() error { return nil }
