package storage

import (
	"net/url"
	"strings"

	"styletransfer/internal/domain"
)

// PrefixLocator resolves artifact paths beneath a fixed public base URL, such
// as the static file route serving a FileStore.
type PrefixLocator struct {
	base string
}

// NewPrefixLocator builds a locator for baseURL. Trailing slashes are ignored.
func NewPrefixLocator(baseURL string) *PrefixLocator {
	return &PrefixLocator{base: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

func (l *PrefixLocator) URL(path string) string {
	return l.base + "/" + strings.TrimLeft(path, "/")
}

func (l *PrefixLocator) Path(raw string) (string, bool) {
	if l.base == "" || raw == "" {
		return "", false
	}
	if _, err := url.Parse(raw); err != nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(raw, l.base+"/")
	if !ok || rest == "" {
		return "", false
	}
	cleaned, err := sanitizeKey(rest)
	if err != nil {
		return "", false
	}
	return cleaned, true
}

var _ domain.ArtifactLocator = (*PrefixLocator)(nil)
