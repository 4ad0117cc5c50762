// Package hub talks to a dataset repository on a Hugging-Face-compatible hub.
// Objects are read through the public resolve endpoint and written through the
// commit API. The hub offers no compare-and-swap, so concurrent commits to the
// same path race and the later one wins.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

const (
	defaultBaseURL  = "https://huggingface.co"
	defaultRevision = "main"
	maxObjectBytes  = 64 << 20
)

// Options controls how the hub client is configured.
type Options struct {
	BaseURL          string
	DatasetRepo      string
	Token            string
	Revision         string
	CommitsPerSecond float64
	FetchRetryWindow time.Duration
	// MaxObjectBytes caps a fetched object. Defaults to 64 MiB.
	MaxObjectBytes   int64
	HTTPClient       *http.Client
	Logger           *infra.Logger
}

// Client implements domain.ObjectRepository and domain.ArtifactLocator for one
// dataset repository.
type Client struct {
	baseURL     string
	repo        string
	token       string
	revision    string
	retryWindow time.Duration
	maxBytes    int64
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      infra.Logger
}

// NewClient validates opts and builds a client.
func NewClient(opts Options) (*Client, error) {
	repo := strings.Trim(strings.TrimSpace(opts.DatasetRepo), "/")
	if repo == "" {
		return nil, errors.New("hub: dataset repository is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	revision := strings.TrimSpace(opts.Revision)
	if revision == "" {
		revision = defaultRevision
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	window := opts.FetchRetryWindow
	if window <= 0 {
		window = 10 * time.Second
	}
	maxBytes := opts.MaxObjectBytes
	if maxBytes <= 0 {
		maxBytes = maxObjectBytes
	}
	limit := rate.Inf
	if opts.CommitsPerSecond > 0 {
		limit = rate.Limit(opts.CommitsPerSecond)
	}
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:     baseURL,
		repo:        repo,
		token:       strings.TrimSpace(opts.Token),
		revision:    revision,
		retryWindow: window,
		maxBytes:    maxBytes,
		httpClient:  client,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger.With().Str("component", "hub").Str("repo", repo).Logger(),
	}, nil
}

// Repo returns the dataset repository id.
func (c *Client) Repo() string {
	return c.repo
}

// Fetch downloads the object at path. Transport failures and 5xx responses
// are retried with exponential backoff; a 404 is reported immediately as
// domain.ErrObjectNotFound.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	endpoint := c.URL(path)
	var data []byte

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.retryWindow

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.authorize(req)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(domain.ErrObjectNotFound)
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("hub: fetch %s: http %d", path, resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("hub: fetch %s: http %d", path, resp.StatusCode))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > c.maxBytes {
			return backoff.Permanent(fmt.Errorf("hub: fetch %s: object larger than %d bytes", path, c.maxBytes))
		}
		data = body
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("path", path).Dur("retry_in", wait).Msg("fetch failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return data, nil
}

// Commit overwrites the object at path with a single-file commit.
func (c *Client) Commit(ctx context.Context, path string, data []byte, message string) error {
	if message == "" {
		message = "Upload " + path
	}
	return c.commit(ctx, message, []operation{{
		Key: "file",
		Value: fileValue{
			Path:     path,
			Content:  base64.StdEncoding.EncodeToString(data),
			Encoding: "base64",
		},
	}})
}

// Delete removes the given paths in one commit.
func (c *Client) Delete(ctx context.Context, paths []string, message string) error {
	if len(paths) == 0 {
		return nil
	}
	ops := make([]operation, 0, len(paths))
	for _, p := range paths {
		ops = append(ops, operation{Key: "deletedFile", Value: deletedValue{Path: p}})
	}
	if message == "" {
		message = fmt.Sprintf("Delete %d files", len(paths))
	}
	return c.commit(ctx, message, ops)
}

type operation struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type headerValue struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type fileValue struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type deletedValue struct {
	Path string `json:"path"`
}

type commitResponse struct {
	CommitOID string `json:"commitOid"`
	CommitURL string `json:"commitUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) commit(ctx context.Context, message string, ops []operation) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("hub: wait for commit slot: %w", err)
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	if err := enc.Encode(operation{Key: "header", Value: headerValue{Summary: message}}); err != nil {
		return err
	}
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return err
		}
	}

	endpoint := fmt.Sprintf("%s/api/datasets/%s/commit/%s", c.baseURL, c.repo, url.PathEscape(c.revision))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hub: commit %q: %w", message, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var out errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr == nil && out.Error != "" {
			return fmt.Errorf("hub: commit %q: http %d: %s", message, resp.StatusCode, out.Error)
		}
		return fmt.Errorf("hub: commit %q: http %d", message, resp.StatusCode)
	}

	var out commitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.CommitOID != "" {
		c.logger.Debug().Str("commit", out.CommitOID).Str("message", message).Msg("committed")
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

var _ domain.ObjectRepository = (*Client)(nil)
