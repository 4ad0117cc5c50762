package gallery

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
	"styletransfer/internal/storage"
)

const base = "http://cdn.test/static"

func newService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	repo := storage.NewMemoryStore()
	docs := docstore.New(repo, infra.NopLogger())
	return NewService(docs, storage.NewPrefixLocator(base), infra.NopLogger()), repo
}

func seedRun(t *testing.T, s *Service, repo *storage.MemoryStore, id string) domain.GalleryRecord {
	t.Helper()
	ctx := context.Background()
	prefix := "runs/2026/10/19/" + id + "/"
	for _, name := range []string{"content.png", "style.png", "result.png"} {
		require.NoError(t, repo.Commit(ctx, prefix+name, []byte(name), "seed"))
	}
	rec := domain.GalleryRecord{
		ID:              id,
		Timestamp:       domain.NewTimestamp(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)),
		ContentImageURL: base + "/" + prefix + "content.png",
		StyleImageURL:   base + "/" + prefix + "style.png",
		ResultImageURL:  base + "/" + prefix + "result.png",
		BestLoss:        7,
		Parameters:      domain.DefaultTransferParams(),
	}
	require.NoError(t, s.Add(ctx, rec))
	return rec
}

func TestListEmptyGallery(t *testing.T) {
	s, _ := newService(t)
	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, s.Count(context.Background()))
}

func TestAddSanitizesInfiniteLosses(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, domain.GalleryRecord{ID: "a", BestLoss: math.Inf(1), StyleLoss: math.Inf(-1)}))
	rec, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.LossCeiling, rec.BestLoss)
	assert.Equal(t, -domain.LossCeiling, rec.StyleLoss)
}

func TestGetUnknown(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRemovesRecordAndArtifacts(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	seedRun(t, s, repo, "run-1")
	seedRun(t, s, repo, "run-2")

	require.NoError(t, s.Delete(ctx, "run-1"))

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "run-2", items[0].ID)
	for _, p := range repo.Paths() {
		assert.NotContains(t, p, "run-1")
	}
}

func TestDeleteUnknown(t *testing.T) {
	s, _ := newService(t)
	assert.ErrorIs(t, s.Delete(context.Background(), "missing"), domain.ErrNotFound)
}

func TestDeleteToleratesForeignArtifactURLs(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, domain.GalleryRecord{ID: "old", ResultImageURL: "https://elsewhere.example/x.png"}))

	require.NoError(t, s.Delete(ctx, "old"))
	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteFailsWhenGalleryUnreadable(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	seedRun(t, s, repo, "run-1")

	repo.FetchErr = errors.New("offline")
	err := s.Delete(ctx, "run-1")
	assert.Error(t, err)
	repo.FetchErr = nil

	_, err = s.Get(ctx, "run-1")
	assert.NoError(t, err)
}

func TestArchiveBundlesArtifacts(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	seedRun(t, s, repo, "run-1")
	require.NoError(t, repo.Delete(ctx, []string{"runs/2026/10/19/run-1/style.png"}, "lose one"))

	var buf bytes.Buffer
	require.NoError(t, s.Archive(ctx, "run-1", &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"record.json", "content.png", "result.png"}, names)
}
