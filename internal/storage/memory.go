package storage

import (
	"context"
	"sort"
	"sync"

	"styletransfer/internal/domain"
)

// MemoryStore is an in-process ObjectRepository. It backs tests and local
// experiments; contents vanish with the process.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	commits []string

	// FetchErr and CommitErr, when set, are returned by every Fetch or Commit.
	FetchErr  error
	CommitErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	data, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Commit(ctx context.Context, path string, data []byte, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.objects[path] = append([]byte(nil), data...)
	m.commits = append(m.commits, message)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, paths []string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, p)
	}
	m.commits = append(m.commits, message)
	return nil
}

// Paths lists stored paths in lexical order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Commits returns the commit messages recorded so far.
func (m *MemoryStore) Commits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commits...)
}

var _ domain.ObjectRepository = (*MemoryStore)(nil)
