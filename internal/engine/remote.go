package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

// ErrMissingEndpoint indicates that the remote engine was configured without a URL.
var ErrMissingEndpoint = errors.New("engine: endpoint is required")

// RemoteOptions configures the HTTP inference engine client.
type RemoteOptions struct {
	BaseURL        string
	Token          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Remote runs transfers on an inference service that streams progress back as
// newline-delimited JSON.
type Remote struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *infra.Logger
}

type transferRequest struct {
	Content transferImage         `json:"content"`
	Style   transferImage         `json:"style"`
	Params  domain.TransferParams `json:"parameters"`
}

type transferImage struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// streamMessage is one line of the response stream. Type selects which of the
// remaining fields are meaningful.
type streamMessage struct {
	Type        string  `json:"type"`
	Iteration   int     `json:"iteration"`
	TotalSteps  int     `json:"total_steps"`
	StyleLoss   float64 `json:"style_loss"`
	ContentLoss float64 `json:"content_loss"`
	ImageBase64 string  `json:"image_base64"`
	MIMEType    string  `json:"mime_type"`
	BestLoss    float64 `json:"best_loss"`
	Message     string  `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRemote constructs a client with sane defaults and injected dependencies.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Zero means no deadline; a run is allowed to take as long as it takes.
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.Nop())
		logger = &l
	}
	return &Remote{
		endpoint:   baseURL + "/v1/transfer",
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Run submits both images and forwards streamed progress to sink until the
// service reports a result or an error. Error messages from the service are
// returned verbatim.
func (r *Remote) Run(ctx context.Context, in domain.EngineInput, sink domain.ProgressSink) (domain.EngineResult, error) {
	payload := transferRequest{
		Content: encodeImage(in.Content),
		Style:   encodeImage(in.Style),
		Params:  in.Params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("engine: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return domain.EngineResult{}, errors.New(detail.Message)
		}
		return domain.EngineResult{}, fmt.Errorf("engine: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	dec := json.NewDecoder(resp.Body)
	events := 0
	for {
		var msg streamMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return domain.EngineResult{}, errors.New("engine: stream ended without a result")
			}
			return domain.EngineResult{}, fmt.Errorf("engine: decode stream: %w", err)
		}

		switch msg.Type {
		case "progress":
			events++
			sink(domain.ProgressEvent{
				Iteration:   msg.Iteration,
				TotalSteps:  msg.TotalSteps,
				StyleLoss:   msg.StyleLoss,
				ContentLoss: msg.ContentLoss,
			})
		case "result":
			data, err := base64.StdEncoding.DecodeString(msg.ImageBase64)
			if err != nil {
				return domain.EngineResult{}, fmt.Errorf("engine: decode result image: %w", err)
			}
			mime := msg.MIMEType
			if mime == "" {
				mime = http.DetectContentType(data)
			}
			r.logger.Debug().
				Int("events", events).
				Float64("best_loss", msg.BestLoss).
				Int("bytes", len(data)).
				Msg("engine: remote run finished")
			return domain.EngineResult{
				Image:    domain.Artifact{Filename: "result", MIME: mime, Data: data},
				BestLoss: msg.BestLoss,
			}, nil
		case "error":
			msgText := strings.TrimSpace(msg.Message)
			if msgText == "" {
				msgText = "engine: remote run failed"
			}
			return domain.EngineResult{}, errors.New(msgText)
		default:
			r.logger.Debug().Str("type", msg.Type).Msg("engine: ignoring unknown stream message")
		}
	}
}

func encodeImage(a domain.Artifact) transferImage {
	mime := a.MIME
	if mime == "" {
		mime = http.DetectContentType(a.Data)
	}
	return transferImage{
		Data:     base64.StdEncoding.EncodeToString(a.Data),
		MIMEType: mime,
		Filename: a.Filename,
	}
}
