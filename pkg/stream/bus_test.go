package stream

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus()
	const n = 500

	go func() {
		r := rand.New(rand.NewSource(7))
		for i := 0; i < n; i++ {
			assert.NoError(t, bus.Publish(StepEvent{ID: fmt.Sprintf("%d", i)}))
			if r.Intn(10) == 0 {
				time.Sleep(time.Duration(r.Intn(200)) * time.Microsecond)
			}
		}
		bus.Close()
	}()

	var got []string
	ctx := context.Background()
	for {
		ev, ok, err := bus.Next(ctx, 20*time.Millisecond)
		require.NoError(t, err)
		if ok {
			got = append(got, ev.ID)
			continue
		}
		if bus.Closed() && bus.Len() == 0 {
			break
		}
	}

	require.Len(t, got, n)
	for i, id := range got {
		assert.Equal(t, fmt.Sprintf("%d", i), id)
	}
}

func TestBusNextTimesOut(t *testing.T) {
	bus := NewBus()
	start := time.Now()
	_, ok, err := bus.Next(context.Background(), 30*time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestBusNextHonoursContext(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := bus.Next(ctx, time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBusDrainAndClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Publish(StepEvent{ID: "a"}))
	require.NoError(t, bus.Publish(StepEvent{ID: "b"}))
	bus.Close()
	bus.Close()

	assert.ErrorIs(t, bus.Publish(StepEvent{ID: "c"}), ErrBusClosed)

	drained := bus.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "a", drained[0].ID)
	assert.Equal(t, "b", drained[1].ID)
	assert.Equal(t, 0, bus.Len())

	select {
	case <-bus.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestRecorderPublishesMergedEvents(t *testing.T) {
	bus := NewBus()
	var observed []Totals
	rec := NewRecorder(NewMerger(), bus, func(ev StepEvent, steps []StepEvent, totals Totals) {
		assert.Len(t, steps, totals.Total)
		observed = append(observed, totals)
	})

	rec.Emit(StepUpdate{Type: StepAnalyzing, Label: "Analyzing your request", Description: "a", Status: StatusActive})
	rec.Emit(StepUpdate{Type: StepAnalyzing, Label: "Analyzing your request", Description: "b", Status: StatusComplete})

	events := bus.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, "a\n\nb", events[1].Description)
	require.Len(t, observed, 2)
	assert.Equal(t, 1, observed[1].Completed)
	assert.Len(t, rec.Steps(), 1)
}
