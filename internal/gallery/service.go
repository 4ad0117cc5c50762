// Package gallery serves the durable list of completed transfers.
package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
	"styletransfer/internal/records"
	"styletransfer/pkg/zip"
)

// DocumentPath is where gallery records are kept, as a bare JSON array.
const DocumentPath = "gallery/gallery.json"

type Service struct {
	records *records.Collection[string, domain.GalleryRecord]
	docs    *docstore.Store
	locator domain.ArtifactLocator
	logger  infra.Logger
}

func NewService(docs *docstore.Store, locator domain.ArtifactLocator, logger infra.Logger) *Service {
	col := records.New(docs, records.Config[string, domain.GalleryRecord]{
		Path:    DocumentPath,
		Key:     func(r domain.GalleryRecord) string { return r.ID },
		Message: "Update gallery.json",
	}, logger)
	return &Service{
		records: col,
		docs:    docs,
		locator: locator,
		logger:  logger.With().Str("component", "gallery").Logger(),
	}
}

// Add appends a record for a finished job.
func (s *Service) Add(ctx context.Context, rec domain.GalleryRecord) error {
	return s.records.Add(ctx, rec.Sanitized())
}

func (s *Service) List(ctx context.Context) ([]domain.GalleryRecord, error) {
	items, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = items[i].Sanitized()
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.GalleryRecord, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	return rec.Sanitized(), nil
}

// Delete removes the record and then, best-effort, its artifacts. A failed
// artifact cleanup leaves orphaned files but still reports success.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}

	paths := s.artifactPaths(rec)
	if len(paths) == 0 {
		return nil
	}
	if err := s.docs.Delete(ctx, paths, "Delete artifacts for run "+id); err != nil {
		s.logger.Error().Err(err).Str("id", id).Strs("paths", paths).Msg("artifact cleanup failed")
	}
	return nil
}

// Archive writes a zip with the record and every artifact that can still be
// fetched.
func (s *Service) Archive(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	manifest, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	entries := []zip.Entry{{Name: "record.json", Data: manifest, Modified: rec.Timestamp.Time}}

	for _, p := range s.artifactPaths(rec) {
		data, err := s.docs.Get(ctx, p)
		if err != nil {
			return err
		}
		if docstore.IsEmpty(data) {
			s.logger.Warn().Str("id", id).Str("path", p).Msg("artifact missing from archive")
			continue
		}
		entries = append(entries, zip.Entry{Name: path.Base(p), Data: data, Modified: rec.Timestamp.Time})
	}
	return zip.Write(w, entries)
}

func (s *Service) Count(ctx context.Context) int {
	items, _ := s.records.List(ctx)
	return len(items)
}

func (s *Service) artifactPaths(rec domain.GalleryRecord) []string {
	var paths []string
	for _, u := range rec.ArtifactURLs() {
		p, ok := s.locator.Path(u)
		if !ok {
			s.logger.Warn().Str("id", rec.ID).Str("url", u).Msg("artifact url not resolvable")
			continue
		}
		paths = append(paths, p)
	}
	return paths
}
