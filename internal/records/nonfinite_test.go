package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
	"styletransfer/internal/storage"
)

func TestReplaceNonFinite(t *testing.T) {
	cases := map[string]string{
		`[{"bestLoss":Infinity}]`:                   `[{"bestLoss":999999999}]`,
		`[{"a":-Infinity,"b":NaN}]`:                 `[{"a":-999999999,"b":0}]`,
		`[{"note":"Infinity and NaN \"NaN\""}]`:     `[{"note":"Infinity and NaN \"NaN\""}]`,
		`[{"note":"tail\\","bestLoss": Infinity }]`: `[{"note":"tail\\","bestLoss": 999999999 }]`,
		`[{"id":"plain","bestLoss":1.5,"ok":true}]`: `[{"id":"plain","bestLoss":1.5,"ok":true}]`,
	}
	for in, want := range cases {
		assert.Equal(t, want, string(replaceNonFinite([]byte(in))), in)
	}
}

func TestGalleryWithInfinityStaysReadable(t *testing.T) {
	repo := storage.NewMemoryStore()
	ctx := context.Background()
	seed := `[{"id":"old","timestamp":"2024-05-01T10:00:00.123456","bestLoss":Infinity,"styleLoss":NaN,"contentLoss":-Infinity,"parameters":{"numSteps":300}}]`
	require.NoError(t, repo.Commit(ctx, "gallery/gallery.json", []byte(seed), "seed"))

	gallery := New(docstore.New(repo, infra.NopLogger()), Config[string, domain.GalleryRecord]{
		Path: "gallery/gallery.json",
		Key:  func(g domain.GalleryRecord) string { return g.ID },
	}, infra.NopLogger())

	items, err := gallery.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.LossCeiling, items[0].BestLoss)
	assert.Equal(t, 0.0, items[0].StyleLoss)
	assert.Equal(t, -domain.LossCeiling, items[0].ContentLoss)

	require.NoError(t, gallery.Add(ctx, domain.GalleryRecord{ID: "new", BestLoss: 2}))
	items, err = gallery.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	raw, err := repo.Fetch(ctx, "gallery/gallery.json")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Infinity")
}
