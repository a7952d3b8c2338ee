// Package upload defines the boundary to the binary upload service used for
// image messages. Compression and resizing policy belong to the caller; the
// engine only exchanges a local resource for a durable URL.
package upload

import (
	"context"
	"fmt"
	"sync"
)

// Service uploads a local image resource under a logical bucket key (the
// conversation id) and returns a durable URL.
type Service interface {
	Upload(ctx context.Context, bucketKey, localPath string) (string, error)
}

// Memory is an in-process Service for tests and the simulator. It fabricates
// stable URLs and remembers what was uploaded.
type Memory struct {
	mu       sync.Mutex
	uploads  map[string]string // url -> localPath
	sequence int
	err      error
}

// NewMemory creates an empty in-memory upload service.
func NewMemory() *Memory {
	return &Memory{uploads: make(map[string]string)}
}

// SetError makes every subsequent Upload fail with err until reset with nil.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Upload(ctx context.Context, bucketKey, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sequence++
	url := fmt.Sprintf("mem://%s/image-%d", bucketKey, m.sequence)
	m.uploads[url] = localPath
	return url, nil
}

// Count returns how many uploads succeeded.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}
