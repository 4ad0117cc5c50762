package domain

import (
	"fmt"
	"math"
	"time"
)

// JobState enumerates job lifecycle states.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether no further transitions are possible from s.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobSnapshot is the latest known status of a job as served to pollers.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	State       JobState  `json:"status"`
	Progress    int       `json:"progress"`
	StyleLoss   *float64  `json:"style_loss,omitempty"`
	ContentLoss *float64  `json:"content_loss,omitempty"`
	ResultURL   string    `json:"result_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TransferParams is the parameter set used for one style-transfer run.
type TransferParams struct {
	StyleWeight   float64            `json:"styleWeight"`
	ContentWeight float64            `json:"contentWeight"`
	NumSteps      int                `json:"numSteps"`
	LayerWeights  map[string]float64 `json:"layerWeights"`
}

const (
	DefaultStyleWeight   = 1000000.0
	DefaultContentWeight = 1.0
	DefaultNumSteps      = 300
	MaxNumSteps          = 5000
)

// DefaultTransferParams returns the parameters applied when a submission omits them.
func DefaultTransferParams() TransferParams {
	return TransferParams{
		StyleWeight:   DefaultStyleWeight,
		ContentWeight: DefaultContentWeight,
		NumSteps:      DefaultNumSteps,
		LayerWeights:  map[string]float64{},
	}
}

// Validate checks the parameter ranges accepted for a run.
func (p TransferParams) Validate() error {
	switch {
	case p.NumSteps < 1 || p.NumSteps > MaxNumSteps:
		return fmt.Errorf("%w: num_steps must be between 1 and %d", ErrInvalidInput, MaxNumSteps)
	case !finiteNonNegative(p.StyleWeight):
		return fmt.Errorf("%w: style_weight must be a non-negative number", ErrInvalidInput)
	case !finiteNonNegative(p.ContentWeight):
		return fmt.Errorf("%w: content_weight must be a non-negative number", ErrInvalidInput)
	}
	for layer, w := range p.LayerWeights {
		if !finiteNonNegative(w) {
			return fmt.Errorf("%w: layer weight %q must be a non-negative number", ErrInvalidInput, layer)
		}
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
