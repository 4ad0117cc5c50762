package hub

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"styletransfer/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{
		BaseURL:          baseURL,
		DatasetRepo:      "someone/style-data",
		Token:            "hub-token",
		FetchRetryWindow: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestNewClientRequiresRepo(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error without dataset repo")
	}
}

func TestFetchReturnsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/someone/style-data/resolve/main/gallery/gallery.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hub-token" {
			t.Errorf("unexpected auth header: %s", got)
		}
		_, _ = w.Write([]byte(`[{"id":"a"}]`))
	}))
	defer ts.Close()

	got, err := newTestClient(t, ts.URL).Fetch(context.Background(), "gallery/gallery.json")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestFetchNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts.URL).Fetch(context.Background(), "auth/users.json")
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"users":[]}`))
	}))
	defer ts.Close()

	got, err := newTestClient(t, ts.URL).Fetch(context.Background(), "auth/users.json")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(got) != `{"users":[]}` || calls.Load() != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, calls.Load())
	}
}

func TestCommitSendsNDJSON(t *testing.T) {
	var lines []operation
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/datasets/someone/style-data/commit/main" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("unexpected content type %s", ct)
		}
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var op operation
			if err := json.Unmarshal(scanner.Bytes(), &op); err != nil {
				t.Errorf("decode line: %v", err)
			}
			lines = append(lines, op)
		}
		_ = json.NewEncoder(w).Encode(commitResponse{CommitOID: "abc"})
	}))
	defer ts.Close()

	err := newTestClient(t, ts.URL).Commit(context.Background(), "gallery/gallery.json", []byte(`[]`), "Update gallery.json")
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if len(lines) != 2 || lines[0].Key != "header" || lines[1].Key != "file" {
		t.Fatalf("unexpected operations: %+v", lines)
	}
	header := lines[0].Value.(map[string]any)
	if header["summary"] != "Update gallery.json" {
		t.Fatalf("unexpected header: %+v", header)
	}
	file := lines[1].Value.(map[string]any)
	if file["path"] != "gallery/gallery.json" || file["encoding"] != "base64" {
		t.Fatalf("unexpected file op: %+v", file)
	}
	if file["content"] != base64.StdEncoding.EncodeToString([]byte(`[]`)) {
		t.Fatalf("unexpected content: %v", file["content"])
	}
}

func TestCommitSurfacesErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "no write access"})
	}))
	defer ts.Close()

	err := newTestClient(t, ts.URL).Commit(context.Background(), "auth/users.json", []byte(`{}`), "")
	if err == nil {
		t.Fatalf("expected commit error")
	}
}

func TestDeleteBatchesPaths(t *testing.T) {
	var count int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var op operation
			_ = json.Unmarshal(scanner.Bytes(), &op)
			if op.Key == "deletedFile" {
				count++
			}
		}
		_ = json.NewEncoder(w).Encode(commitResponse{CommitOID: "def"})
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	if err := client.Delete(context.Background(), []string{"runs/a/content.jpg", "runs/a/result.jpg"}, ""); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deleted files, got %d", count)
	}
}

func TestFetchRejectsOversizedObject(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer ts.Close()

	client, err := NewClient(Options{BaseURL: ts.URL, DatasetRepo: "someone/style-data", MaxObjectBytes: 10})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if got, err := client.Fetch(context.Background(), "runs/a.png"); err != nil || len(got) != 10 {
		t.Fatalf("object at the limit: %q, %v", got, err)
	}

	client, _ = NewClient(Options{BaseURL: ts.URL, DatasetRepo: "someone/style-data", MaxObjectBytes: 9})
	calls.Store(0)
	_, err = client.Fetch(context.Background(), "runs/a.png")
	if err == nil || !strings.Contains(err.Error(), "larger than 9 bytes") {
		t.Fatalf("expected size error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("oversized object retried %d times", calls.Load())
	}
}
