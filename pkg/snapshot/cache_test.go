package snapshot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-ragchat-be/pkg/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCacheLatestOnEmpty(t *testing.T) {
	c := NewCache()
	_, ok := c.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().CachedSubjects)
}

func TestCacheUpsertGetAndLatest(t *testing.T) {
	clock := newClock()
	c := NewCache().WithClock(clock.Now)

	c.Upsert("alice", PipelineSnapshot{UserQuery: "first"})
	c.Upsert("bob", PipelineSnapshot{UserQuery: "second"})

	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "second", latest.UserQuery)

	c.Upsert("alice", PipelineSnapshot{UserQuery: "third"})
	latest, ok = c.Latest()
	require.True(t, ok)
	assert.Equal(t, "third", latest.UserQuery)

	got, ok := c.Get("bob")
	require.True(t, ok)
	assert.Equal(t, "second", got.UserQuery)
	assert.Equal(t, 2, c.Stats().CachedSubjects)

	c.Delete("alice")
	latest, _ = c.Latest()
	assert.Equal(t, "second", latest.UserQuery)
	assert.Equal(t, 1, c.Stats().CachedSubjects)
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache()
	label := "Searching"
	c.Upsert("k", PipelineSnapshot{Steps: []stream.StepEvent{{ID: "a"}}, ActiveStep: &label})

	got, _ := c.Get("k")
	got.Steps[0].ID = "mutated"
	*got.ActiveStep = "mutated"

	again, _ := c.Get("k")
	assert.Equal(t, "a", again.Steps[0].ID)
	assert.Equal(t, "Searching", *again.ActiveStep)
}

func TestCacheConcurrentUpsertsToDistinctKeys(t *testing.T) {
	c := NewCache()
	const writers = 32
	const updates = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("user-%d", w)
			for i := 0; i < updates; i++ {
				c.Upsert(key, PipelineSnapshot{UserQuery: key, TotalSteps: i})
				c.Latest()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, writers, c.Stats().CachedSubjects)
	for w := 0; w < writers; w++ {
		key := fmt.Sprintf("user-%d", w)
		s, ok := c.Get(key)
		require.True(t, ok)
		assert.Equal(t, key, s.UserQuery)
		assert.Equal(t, updates-1, s.TotalSteps)
	}
}

func TestCacheObserverSeesStampedSnapshot(t *testing.T) {
	clock := newClock()
	c := NewCache().WithClock(clock.Now)

	var seen []PipelineSnapshot
	c.Subscribe(func(key string, snap PipelineSnapshot) {
		assert.Equal(t, "k", key)
		seen = append(seen, snap)
	})

	c.Upsert("k", PipelineSnapshot{UserQuery: "q"})
	require.Len(t, seen, 1)
	assert.False(t, seen[0].LastUpdated.IsZero())
}

func TestTrackerKeepsInvariants(t *testing.T) {
	c := NewCache()
	tracker := NewTracker(c, "user-1", PipelineSnapshot{MessageID: 42, UserQuery: "What is telehealth?"})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	merger := stream.NewMerger().WithClock(func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	})
	rec := stream.NewRecorder(merger, nil, tracker.ApplyStep)

	rec.Emit(stream.StepUpdate{Type: stream.StepAnalyzing, Label: "Analyzing your request", Status: stream.StatusActive})
	snap, _ := c.Get("user-1")
	require.NotNil(t, snap.ActiveStep)
	assert.Equal(t, "Analyzing your request", *snap.ActiveStep)

	rec.Emit(stream.StepUpdate{Type: stream.StepAnalyzing, Label: "Analyzing your request", Status: stream.StatusComplete})
	rec.Emit(stream.StepUpdate{Type: stream.StepAnalyzingDocument, Label: "Analyzing document: A", Status: stream.StatusComplete})

	tracker.AppendResponse("Hello")
	tracker.AppendResponse(" world")
	tracker.SetSourcesCount(2)
	tracker.SetSuggestionsCount(4)
	tracker.Finish()

	snap, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, int64(42), snap.MessageID)
	assert.Equal(t, len(snap.Steps), snap.TotalSteps)
	assert.Equal(t, 2, snap.CompletedSteps)
	assert.Nil(t, snap.ActiveStep)
	assert.Equal(t, "Hello world", snap.AssistantResponse)
	assert.Equal(t, 2, snap.SourcesCount)
	assert.Equal(t, 4, snap.SuggestionsCount)
	require.NotNil(t, snap.ProcessingTimeMs)
	assert.InDelta(t, 250.0, *snap.ProcessingTimeMs, 0.001)
	assert.Equal(t, snap.AssistantResponse, tracker.Snapshot().AssistantResponse)
}

func TestNewMessageIDIsMicroseconds(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 1000, time.UTC)
	assert.Equal(t, ts.UnixMicro(), NewMessageID(ts))
}
