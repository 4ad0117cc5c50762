package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"styletransfer/internal/domain"
)

func TestProgressChannelFIFO(t *testing.T) {
	ch := NewProgressChannel()
	for i := 1; i <= 3; i++ {
		require.True(t, ch.Send(domain.ProgressEvent{Iteration: i, TotalSteps: 3}))
	}

	select {
	case <-ch.Ready():
	default:
		t.Fatal("expected ready signal after send")
	}

	got := ch.Drain()
	require.Len(t, got, 3)
	for i, ev := range got {
		assert.Equal(t, i+1, ev.Iteration)
	}
	assert.Empty(t, ch.Drain())
}

func TestProgressChannelDropsAfterClose(t *testing.T) {
	ch := NewProgressChannel()
	ch.Send(domain.ProgressEvent{Iteration: 1, TotalSteps: 2})

	remaining := ch.Close()
	require.Len(t, remaining, 1)

	assert.False(t, ch.Send(domain.ProgressEvent{Iteration: 2, TotalSteps: 2}))
	assert.Equal(t, 0, ch.Len())
}

func TestProgressChannelConcurrentProducers(t *testing.T) {
	ch := NewProgressChannel()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ch.Send(domain.ProgressEvent{Iteration: i, TotalSteps: 100})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ch.Drain(), 800)
}
