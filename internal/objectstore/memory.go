package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/keyrepo/internal/common"
)

type memoryObject struct {
	contentType string
	data        []byte
	updatedAt   time.Time
}

// MemoryStore keeps objects in process memory. Stored and returned byte
// slices are copies, so callers may reuse their buffers.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ObjectInfo, 0, len(m.objects))
	for k, o := range m.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		result = append(result, ObjectInfo{
			Key:         k,
			Size:        int64(len(o.data)),
			ContentType: o.contentType,
			UpdatedAt:   o.updatedAt,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, common.ErrorNotFound)
	}
	return append([]byte(nil), o.data...), nil
}

func (m *MemoryStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{
		contentType: contentType,
		data:        append([]byte(nil), data...),
		updatedAt:   m.now(),
	}
	return nil
}
