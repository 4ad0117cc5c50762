// Package docstore reads and writes whole JSON documents in an object
// repository.
//
// There is no compare-and-swap and no partial update: Put replaces the entire
// document. Two processes writing the same path race and the later commit
// silently wins. Store does not try to hide this; callers that need any safety
// must at least serialize their own writes to a path within the process.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

// Empty is returned by Get for documents that were never committed.
var Empty = []byte{}

// IsEmpty reports whether data is the empty-document sentinel (or any
// zero-length document).
func IsEmpty(data []byte) bool {
	return len(data) == 0
}

// Store is a thin document layer over a domain.ObjectRepository.
type Store struct {
	repo   domain.ObjectRepository
	logger infra.Logger
}

func New(repo domain.ObjectRepository, logger infra.Logger) *Store {
	return &Store{repo: repo, logger: logger.With().Str("component", "docstore").Logger()}
}

// Get returns the document at path. A missing document yields Empty and a nil
// error. Any other repository failure is wrapped in domain.ErrStoreUnavailable.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.repo.Fetch(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			s.logger.Debug().Str("path", path).Msg("document absent, using empty collection")
			return Empty, nil
		}
		s.logger.Error().Err(err).Str("path", path).Msg("document fetch failed")
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrStoreUnavailable, path, err)
	}
	if data == nil {
		return Empty, nil
	}
	return data, nil
}

// Put overwrites the document at path. Failures are always returned: a
// silently dropped write against a non-transactional store is a correctness
// issue.
func (s *Store) Put(ctx context.Context, path string, data []byte, message string) error {
	if err := s.repo.Commit(ctx, path, data, message); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("document commit failed")
		return fmt.Errorf("%w: put %s: %w", domain.ErrStoreUnavailable, path, err)
	}
	return nil
}

// Delete removes paths from the repository.
func (s *Store) Delete(ctx context.Context, paths []string, message string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := s.repo.Delete(ctx, paths, message); err != nil {
		return fmt.Errorf("%w: delete %v: %w", domain.ErrStoreUnavailable, paths, err)
	}
	return nil
}
