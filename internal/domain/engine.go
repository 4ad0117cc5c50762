package domain

import "context"

// ProgressEvent is emitted by an Engine once per completed iteration.
type ProgressEvent struct {
	Iteration   int
	TotalSteps  int
	StyleLoss   float64
	ContentLoss float64
}

// ProgressSink receives progress events. Implementations must not block and
// may be called from any goroutine.
type ProgressSink func(ProgressEvent)

// EngineInput carries both images and the parameter set.
type EngineInput struct {
	Content Artifact
	Style   Artifact
	Params  TransferParams
}

// EngineResult is the produced artifact plus the engine's own final metric.
type EngineResult struct {
	Image    Artifact
	BestLoss float64
}

// Engine performs the style transfer itself.
type Engine interface {
	Run(ctx context.Context, in EngineInput, sink ProgressSink) (EngineResult, error)
}
