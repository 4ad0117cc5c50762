package hub

import "testing"

func TestLocatorRoundTrip(t *testing.T) {
	client, err := NewClient(Options{DatasetRepo: "someone/style-data"})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	url := client.URL("runs/2024/05/01/job-1/result.jpg")
	want := "https://huggingface.co/datasets/someone/style-data/resolve/main/runs/2024/05/01/job-1/result.jpg"
	if url != want {
		t.Fatalf("URL = %q, want %q", url, want)
	}
	path, ok := client.Path(url)
	if !ok || path != "runs/2024/05/01/job-1/result.jpg" {
		t.Fatalf("Path = %q, %v", path, ok)
	}
}

func TestLocatorAcceptsOtherRevisions(t *testing.T) {
	client, _ := NewClient(Options{DatasetRepo: "someone/style-data"})
	path, ok := client.Path("https://huggingface.co/datasets/someone/style-data/resolve/abc123/runs/x/style.jpg?download=true")
	if !ok || path != "runs/x/style.jpg" {
		t.Fatalf("Path = %q, %v", path, ok)
	}
}

func TestLocatorRejectsMalformedAndForeignURLs(t *testing.T) {
	client, _ := NewClient(Options{DatasetRepo: "someone/style-data"})
	for _, raw := range []string{
		"",
		"https://example.com/runs/a.jpg",
		"https://huggingface.co/datasets/other/repo/resolve/main/runs/a.jpg",
		"https://huggingface.co/datasets/someone/style-data/resolve/main",
		"https://huggingface.co/datasets/someone/style-data/resolve/main/",
		"https://huggingface.co/datasets/someone/style-data/resolve/main/../auth/users.json",
		"%zz",
	} {
		if path, ok := client.Path(raw); ok {
			t.Fatalf("Path(%q) = %q, expected no path", raw, path)
		}
	}
}
