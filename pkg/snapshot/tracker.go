package snapshot

import (
	"sync"

	"ai-ragchat-be/pkg/stream"
)

// Tracker owns the in-flight snapshot of one exchange and pushes every
// mutation into the cache. It is safe to drive from the pipeline goroutine
// and the stream consumer at the same time.
type Tracker struct {
	mu    sync.Mutex
	cache *Cache
	key   string
	snap  PipelineSnapshot
}

func NewTracker(cache *Cache, key string, initial PipelineSnapshot) *Tracker {
	t := &Tracker{cache: cache, key: key, snap: initial.Clone()}
	t.snap = t.cache.Upsert(key, t.snap)
	return t
}

func (t *Tracker) mutate(fn func(s *PipelineSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.snap)
	t.snap = t.cache.Upsert(t.key, t.snap)
}

// ApplyStep matches stream.StepObserver.
func (t *Tracker) ApplyStep(_ stream.StepEvent, steps []stream.StepEvent, totals stream.Totals) {
	t.mutate(func(s *PipelineSnapshot) {
		s.Steps = steps
		s.TotalSteps = totals.Total
		s.CompletedSteps = totals.Completed
		s.ActiveStep = totals.ActiveStep
	})
}

func (t *Tracker) AppendResponse(chunk string) {
	t.mutate(func(s *PipelineSnapshot) {
		s.AssistantResponse += chunk
	})
}

func (t *Tracker) SetSourcesCount(n int) {
	t.mutate(func(s *PipelineSnapshot) {
		s.SourcesCount = n
	})
}

func (t *Tracker) SetSuggestionsCount(n int) {
	t.mutate(func(s *PipelineSnapshot) {
		s.SuggestionsCount = n
	})
}

// Finish records processing time as the span between the first and last
// recorded steps.
func (t *Tracker) Finish() {
	t.mutate(func(s *PipelineSnapshot) {
		if len(s.Steps) == 0 {
			return
		}
		first := s.Steps[0].Timestamp
		last := s.Steps[len(s.Steps)-1].Timestamp
		ms := float64(last.Sub(first).Microseconds()) / 1000
		if ms < 0 {
			ms = 0
		}
		s.ProcessingTimeMs = &ms
	})
}

func (t *Tracker) Snapshot() PipelineSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.Clone()
}
