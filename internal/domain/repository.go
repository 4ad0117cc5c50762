package domain

import "context"

// ObjectRepository is a remote, versioned object store that only supports
// whole-object commits. It offers no compare-and-swap: concurrent commits to
// the same path race and the later one wins.
type ObjectRepository interface {
	// Fetch returns the object bytes or ErrObjectNotFound.
	Fetch(ctx context.Context, path string) ([]byte, error)
	// Commit overwrites the object at path.
	Commit(ctx context.Context, path string, data []byte, message string) error
	// Delete removes the given paths. Missing paths are not an error.
	Delete(ctx context.Context, paths []string, message string) error
}

// ArtifactLocator maps in-repository paths to publicly resolvable URLs and back.
type ArtifactLocator interface {
	URL(path string) string
	// Path returns false for malformed or foreign URLs.
	Path(url string) (string, bool)
}

// Notifier delivers fire-and-forget notifications. Failures are reported via
// the boolean result only.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]string) bool
}

const (
	EventPermissionRequested = "permission_requested"
	EventRequestApproved     = "request_approved"
	EventRequestRejected     = "request_rejected"
)
