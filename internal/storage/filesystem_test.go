package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"styletransfer/internal/domain"
)

func TestFileStoreCommitAndFetch(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx := context.Background()
	if err := store.Commit(ctx, "gallery/gallery.json", []byte(`[]`), "init"); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if err := store.Commit(ctx, "gallery/gallery.json", []byte(`[{"id":"a"}]`), "update"); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	got, err := store.Fetch(ctx, "gallery/gallery.json")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Fatalf("unexpected content %q", got)
	}

	entries, err := os.ReadDir(filepath.Join(store.BasePath(), "gallery"))
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the committed file, found %d entries", len(entries))
	}
}

func TestFileStoreFetchMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := store.Fetch(context.Background(), "auth/users.json"); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFileStoreDeleteIgnoresMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx := context.Background()
	if err := store.Commit(ctx, "runs/a/result.jpg", []byte("x"), ""); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if err := store.Delete(ctx, []string{"runs/a/result.jpg", "runs/a/missing.jpg"}, ""); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Fetch(ctx, "runs/a/result.jpg"); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected deleted object to be gone, got %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if err := store.Commit(context.Background(), "../escape.json", []byte("x"), ""); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "gallery/gallery.json", want: "gallery/gallery.json"},
		{in: "/runs//2024/a.jpg", want: "runs/2024/a.jpg"},
		{in: "./auth\\users.json", want: "auth/users.json"},
		{in: "runs/../auth/users.json", want: "auth/users.json"},
		{in: "..", wantErr: true},
		{in: "../x", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
