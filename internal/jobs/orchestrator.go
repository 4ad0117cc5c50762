// Package jobs runs style-transfer jobs in the background and tracks their
// progress for pollers.
//
// Each submitted job is owned by one goroutine until it reaches a terminal
// state. The engine runs on a goroutine of its own and reports progress
// through a ProgressChannel that the job goroutine drains into the Registry.
// Completed jobs are distilled into a gallery record; the job itself is never
// persisted.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

// GalleryWriter appends a finished job to the gallery.
type GalleryWriter interface {
	Add(ctx context.Context, rec domain.GalleryRecord) error
}

// Inputs are the two images submitted with a job.
type Inputs struct {
	Content domain.Artifact
	Style   domain.Artifact
}

// ArtifactRoot is the top-level directory of every uploaded or generated image.
// Documents such as the gallery and accounts live outside it.
const ArtifactRoot = "runs"

var errNoImage = errors.New("engine returned no image")

type Options struct {
	Engine  domain.Engine
	Store   *docstore.Store
	Locator domain.ArtifactLocator
	Gallery GalleryWriter
	// MaxConcurrent bounds how many engines run at once. Queued jobs stay
	// pending. Values below 1 mean 1.
	MaxConcurrent int
	Logger        infra.Logger
	Now           func() time.Time
}

// Stats summarises the orchestrator's tables.
type Stats struct {
	Pending        int `json:"pending"`
	Processing     int `json:"processing"`
	Completed      int `json:"completed"`
	Failed         int `json:"failed"`
	ActiveChannels int `json:"active_channels"`
}

type Orchestrator struct {
	engine   domain.Engine
	store    *docstore.Store
	locator  domain.ArtifactLocator
	gallery  GalleryWriter
	registry *Registry
	slots    *semaphore.Weighted
	logger   infra.Logger
	now      func() time.Time

	mu     sync.Mutex
	routes map[string]*ProgressChannel

	inflight sync.WaitGroup
}

func NewOrchestrator(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	return &Orchestrator{
		engine:   opts.Engine,
		store:    opts.Store,
		locator:  opts.Locator,
		gallery:  opts.Gallery,
		registry: NewRegistry(now),
		slots:    semaphore.NewWeighted(int64(limit)),
		logger:   opts.Logger.With().Str("component", "jobs").Logger(),
		now:      now,
		routes:   make(map[string]*ProgressChannel),
	}
}

// Submit validates the inputs, records a pending job and starts it in the
// background. It returns as soon as the job is registered.
func (o *Orchestrator) Submit(ctx context.Context, in Inputs, params domain.TransferParams) (string, error) {
	if in.Content.Empty() || in.Style.Empty() {
		return "", fmt.Errorf("%w: content and style images are required", domain.ErrInvalidInput)
	}
	if err := params.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err := o.registry.Begin(id); err != nil {
		return "", err
	}
	ch := NewProgressChannel()
	o.mu.Lock()
	o.routes[id] = ch
	o.mu.Unlock()

	o.logger.Info().Str("job_id", id).Int("num_steps", params.NumSteps).Msg("job submitted")

	o.inflight.Add(1)
	go o.run(context.WithoutCancel(ctx), id, ch, in, params)
	return id, nil
}

// Poll returns the latest snapshot of a job. Once the job is terminal its
// progress channel, if still routed, is released.
func (o *Orchestrator) Poll(id string) (domain.JobSnapshot, error) {
	snap, ok := o.registry.Get(id)
	if !ok {
		return domain.JobSnapshot{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	if snap.State.Terminal() {
		o.dropRoute(id)
	}
	return snap, nil
}

func (o *Orchestrator) Stats() Stats {
	counts := o.registry.Counts()
	o.mu.Lock()
	active := len(o.routes)
	o.mu.Unlock()
	return Stats{
		Pending:        counts[domain.JobStatePending],
		Processing:     counts[domain.JobStateProcessing],
		Completed:      counts[domain.JobStateCompleted],
		Failed:         counts[domain.JobStateFailed],
		ActiveChannels: active,
	}
}

// Wait blocks until every started job has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type engineOutcome struct {
	result domain.EngineResult
	err    error
}

func (o *Orchestrator) run(ctx context.Context, id string, ch *ProgressChannel, in Inputs, params domain.TransferParams) {
	defer o.inflight.Done()
	log := o.logger.With().Str("job_id", id).Logger()

	if err := o.slots.Acquire(ctx, 1); err != nil {
		o.finishFailed(id, ch, err.Error())
		return
	}
	defer o.slots.Release(1)

	started := o.now()
	done := make(chan engineOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- engineOutcome{err: fmt.Errorf("engine panic: %v", r)}
			}
		}()
		res, err := o.engine.Run(ctx, domain.EngineInput{
			Content: in.Content,
			Style:   in.Style,
			Params:  params,
		}, func(ev domain.ProgressEvent) {
			ch.Send(ev)
		})
		done <- engineOutcome{result: res, err: err}
	}()

	var losses lossTracker
	var outcome engineOutcome
consume:
	for {
		select {
		case <-ch.Ready():
			o.fold(id, ch.Drain(), &losses)
		case outcome = <-done:
			o.fold(id, ch.Close(), &losses)
			break consume
		}
	}

	if outcome.err != nil {
		log.Error().Err(fmt.Errorf("%w: %w", domain.ErrEngineFailure, outcome.err)).Msg("engine run failed")
		o.finishFailed(id, ch, outcome.err.Error())
		return
	}
	if outcome.result.Image.Empty() {
		o.finishFailed(id, ch, errNoImage.Error())
		return
	}

	rec, uploaded, err := o.persist(ctx, id, started, in, params, outcome.result, losses)
	if err != nil {
		log.Error().Err(err).Msg("job persistence failed")
		o.discard(ctx, id, uploaded)
		o.finishFailed(id, ch, err.Error())
		return
	}

	if _, err := o.registry.Complete(id, rec.ResultImageURL); err != nil {
		log.Error().Err(err).Msg("complete transition rejected")
	}
	o.dropRoute(id)
	log.Info().
		Float64("best_loss", rec.BestLoss).
		Float64("processing_time", rec.ProcessingTime).
		Msg("job completed")
}

func (o *Orchestrator) fold(id string, events []domain.ProgressEvent, losses *lossTracker) {
	for _, ev := range events {
		losses.observe(ev)
		if _, err := o.registry.Fold(id, ev); err != nil {
			o.logger.Warn().Err(err).Str("job_id", id).Msg("progress event dropped")
		}
	}
}

// persist uploads the three artifacts and appends the gallery record. The
// returned paths are the artifacts written so far, for cleanup on failure.
func (o *Orchestrator) persist(ctx context.Context, id string, started time.Time, in Inputs, params domain.TransferParams, res domain.EngineResult, losses lossTracker) (domain.GalleryRecord, []string, error) {
	prefix := runPrefix(started, id)
	named := []struct {
		name     string
		artifact domain.Artifact
	}{
		{"content", in.Content},
		{"style", in.Style},
		{"result", res.Image},
	}

	var (
		mu       sync.Mutex
		uploaded []string
		urls     = make([]string, len(named))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range named {
		p := path.Join(prefix, item.name+artifactExtension(item.artifact))
		g.Go(func() error {
			msg := fmt.Sprintf("Upload %s image for job %s", item.name, id)
			if err := o.store.Put(gctx, p, item.artifact.Data, msg); err != nil {
				return fmt.Errorf("upload %s image: %w", item.name, err)
			}
			mu.Lock()
			uploaded = append(uploaded, p)
			mu.Unlock()
			urls[i] = o.locator.URL(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.GalleryRecord{}, uploaded, err
	}

	rec := domain.GalleryRecord{
		ID:              id,
		Timestamp:       domain.NewTimestamp(started),
		ContentImageURL: urls[0],
		StyleImageURL:   urls[1],
		ResultImageURL:  urls[2],
		BestLoss:        losses.best(res.BestLoss),
		StyleLoss:       losses.style,
		ContentLoss:     losses.content,
		ProcessingTime:  o.now().Sub(started).Seconds(),
		Parameters:      params,
	}.Sanitized()

	if err := o.gallery.Add(ctx, rec); err != nil {
		return domain.GalleryRecord{}, uploaded, fmt.Errorf("save gallery record: %w", err)
	}
	return rec, uploaded, nil
}

func (o *Orchestrator) discard(ctx context.Context, id string, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := o.store.Delete(ctx, paths, "Remove artifacts of failed job "+id); err != nil {
		o.logger.Warn().Err(err).Str("job_id", id).Strs("paths", paths).Msg("artifact cleanup failed")
	}
}

func (o *Orchestrator) finishFailed(id string, ch *ProgressChannel, message string) {
	ch.Close()
	if _, err := o.registry.Fail(id, message); err != nil {
		o.logger.Error().Err(err).Str("job_id", id).Msg("fail transition rejected")
	}
	o.dropRoute(id)
	o.logger.Warn().Str("job_id", id).Str("error", message).Msg("job failed")
}

func (o *Orchestrator) dropRoute(id string) {
	o.mu.Lock()
	ch, ok := o.routes[id]
	delete(o.routes, id)
	o.mu.Unlock()
	if ok {
		ch.Close()
	}
}

// lossTracker follows the metrics reported during a run.
type lossTracker struct {
	seen    bool
	style   float64
	content float64
	minimum float64
}

func (l *lossTracker) observe(ev domain.ProgressEvent) {
	l.style = ev.StyleLoss
	l.content = ev.ContentLoss
	total := ev.StyleLoss + ev.ContentLoss
	if math.IsNaN(total) {
		return
	}
	if !l.seen || total < l.minimum {
		l.minimum = total
	}
	l.seen = true
}

// best returns the lowest observed total loss, falling back to the engine's
// own figure when no progress was reported.
func (l lossTracker) best(engineBest float64) float64 {
	if l.seen {
		return l.minimum
	}
	if !math.IsNaN(engineBest) && !math.IsInf(engineBest, 0) && engineBest != 0 {
		return engineBest
	}
	return l.style + l.content
}

func runPrefix(t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s", ArtifactRoot, t.Year(), int(t.Month()), t.Day(), id)
}

func artifactExtension(a domain.Artifact) string {
	mime := a.MIME
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(a.Data)
	}
	if ext := extensionForMIME(mime); ext != "" {
		return ext
	}
	if ext := strings.ToLower(path.Ext(a.Filename)); ext != "" {
		return ext
	}
	return ".bin"
}

func extensionForMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
