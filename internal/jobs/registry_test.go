package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"styletransfer/internal/domain"
)

func TestRegistryBeginIsPending(t *testing.T) {
	r := NewRegistry(nil)
	snap, err := r.Begin("job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, snap.State)
	assert.Equal(t, 0, snap.Progress)

	_, err = r.Begin("job-1")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestRegistryFoldNeverRegresses(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Begin("job-1")
	require.NoError(t, err)

	_, err = r.Fold("job-1", domain.ProgressEvent{Iteration: 3, TotalSteps: 4, StyleLoss: 6, ContentLoss: 3})
	require.NoError(t, err)
	snap, err := r.Fold("job-1", domain.ProgressEvent{Iteration: 1, TotalSteps: 4, StyleLoss: 10, ContentLoss: 5})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateProcessing, snap.State)
	assert.Equal(t, 75, snap.Progress)
	require.NotNil(t, snap.StyleLoss)
	assert.Equal(t, 10.0, *snap.StyleLoss)
}

func TestRegistryFoldClampsProgressAndLosses(t *testing.T) {
	r := NewRegistry(nil)
	_, _ = r.Begin("job-1")

	snap, err := r.Fold("job-1", domain.ProgressEvent{Iteration: 9, TotalSteps: 4, StyleLoss: inf()})
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, domain.LossCeiling, *snap.StyleLoss)
}

func TestRegistryTerminalIsImmutable(t *testing.T) {
	r := NewRegistry(nil)
	_, _ = r.Begin("job-1")

	_, err := r.Fail("job-1", "boom")
	require.NoError(t, err)

	_, err = r.Complete("job-1", "http://cdn/result.png")
	assert.ErrorIs(t, err, domain.ErrTerminal)
	_, err = r.Fold("job-1", domain.ProgressEvent{Iteration: 1, TotalSteps: 1})
	assert.ErrorIs(t, err, domain.ErrTerminal)

	snap, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, domain.JobStateFailed, snap.State)
	assert.Equal(t, "boom", snap.Error)
}

func TestRegistryCompleteRequiresResult(t *testing.T) {
	r := NewRegistry(nil)
	_, _ = r.Begin("job-1")

	_, err := r.Complete("job-1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	snap, _ := r.Get("job-1")
	assert.Equal(t, domain.JobStatePending, snap.State)
}

func TestRegistryUnknownJob(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Fold("nope", domain.ProgressEvent{Iteration: 1, TotalSteps: 2})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistryUsesClock(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(func() time.Time { return fixed })
	snap, _ := r.Begin("job-1")
	assert.Equal(t, fixed, snap.UpdatedAt)
}
