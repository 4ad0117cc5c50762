package storage

import (
	"context"
	"fmt"

	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
	"styletransfer/internal/sqlinline"
)

// PGStore keeps objects as rows of a single postgres table. A commit is an
// upsert, so it has the same last-writer-wins semantics as the hub backend.
type PGStore struct {
	sql infra.SQLExecutor
}

func NewPGStore(sql infra.SQLExecutor) *PGStore {
	return &PGStore{sql: sql}
}

// EnsureSchema creates the objects table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureObjectsTable); err != nil {
		return fmt.Errorf("storage: ensure objects table: %w", err)
	}
	return nil
}

func (s *PGStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	if err := s.sql.QueryRow(ctx, sqlinline.QFetchObject, path).Scan(&data); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: fetch %s: %w", path, err)
	}
	return data, nil
}

func (s *PGStore) Commit(ctx context.Context, path string, data []byte, message string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QCommitObject, path, data, message); err != nil {
		return fmt.Errorf("storage: commit %s: %w", path, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, paths []string, _ string) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteObjects, paths); err != nil {
		return fmt.Errorf("storage: delete objects: %w", err)
	}
	return nil
}

var _ domain.ObjectRepository = (*PGStore)(nil)
