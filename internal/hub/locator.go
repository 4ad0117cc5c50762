package hub

import (
	"net/url"
	"strings"

	"styletransfer/internal/domain"
)

const resolveMarker = "/resolve/"

// URL returns the CDN-resolvable URL of path in the configured revision.
func (c *Client) URL(path string) string {
	return c.datasetPrefix() + resolveMarker + url.PathEscape(c.revision) + "/" + strings.TrimLeft(path, "/")
}

// Path extracts the in-repository path from a resolve URL of this dataset.
// URLs of other datasets, other hosts or without a path after the revision
// yield false.
func (c *Client) Path(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if _, err := url.Parse(raw); err != nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(raw, c.datasetPrefix()+resolveMarker)
	if !ok {
		return "", false
	}
	_, path, ok := strings.Cut(rest, "/")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, "..") {
		return "", false
	}
	return path, true
}

func (c *Client) datasetPrefix() string {
	return c.baseURL + "/datasets/" + c.repo
}

var _ domain.ArtifactLocator = (*Client)(nil)
