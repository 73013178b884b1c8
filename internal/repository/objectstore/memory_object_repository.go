package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

// MemoryObjectRepository keeps objects in process memory.
type MemoryObjectRepository struct {
	mu         sync.RWMutex
	bucketName string
	objects    map[string][]byte
}

var _ ObjectRepository = &MemoryObjectRepository{}

// NewMemoryObjectRepository creates an empty in-memory repository.
func NewMemoryObjectRepository(bucketName string) *MemoryObjectRepository {
	return &MemoryObjectRepository{
		bucketName: bucketName,
		objects:    make(map[string][]byte),
	}
}

// Upload stores a copy of the reader's contents under key.
func (r *MemoryObjectRepository) Upload(ctx context.Context, key string, reader io.Reader, quiet bool) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload body: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[key] = data

	return r.bucketName + "/" + key, nil
}

// Download returns the object stored under key.
func (r *MemoryObjectRepository) Download(ctx context.Context, key string, quiet bool) (io.ReadCloser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", zerrors.ErrObjectNotFound, r.bucketName, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *MemoryObjectRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.objects, key)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (r *MemoryObjectRepository) DeletePrefix(ctx context.Context, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.objects {
		if strings.HasPrefix(key, prefix) {
			delete(r.objects, key)
		}
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (r *MemoryObjectRepository) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.objects))
	for key := range r.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the subvolume name.
func (r *MemoryObjectRepository) Name() string {
	return subvolumeName(MemoryType, r.bucketName)
}

// GetBucketName returns the bucket name.
func (r *MemoryObjectRepository) GetBucketName() string {
	return r.bucketName
}

// GetStorageType returns the storage type.
func (r *MemoryObjectRepository) GetStorageType() string {
	return string(MemoryType)
}
