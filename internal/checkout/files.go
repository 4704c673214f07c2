package checkout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// FileStore holds staged attachment bytes between selection and the
// post-order upload.
type FileStore interface {
	Save(ctx context.Context, data []byte) (fileRef string, err error)
	Open(ctx context.Context, fileRef string) (io.ReadCloser, error)
	Discard(ctx context.Context, fileRef string) error
}

// MemoryFileStore keeps staged files in process memory. Attachments are
// small and short-lived, so this is the default backend.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryFileStore returns an empty staging store.
func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{files: make(map[string][]byte)}
}

func (s *MemoryFileStore) Save(ctx context.Context, data []byte) (string, error) {
	ref := uuid.NewString()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.mu.Lock()
	s.files[ref] = stored
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryFileStore) Open(ctx context.Context, fileRef string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.files[fileRef]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("staged file %q not found", fileRef)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryFileStore) Discard(ctx context.Context, fileRef string) error {
	s.mu.Lock()
	delete(s.files, fileRef)
	s.mu.Unlock()
	return nil
}
