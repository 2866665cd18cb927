package stream

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const descriptionSeparator = "\n\n"

// Totals is derived from the full step collection after every upsert.
type Totals struct {
	Total     int
	Completed int
	// ActiveStep is the label of the most recently updated step that is
	// still active, or nil when none is.
	ActiveStep *string
}

type entry struct {
	event StepEvent
	seq   uint64
}

// Merger turns raw step updates into stable, ordered step records.
type Merger struct {
	mu       sync.Mutex
	order    []string
	entries  map[string]*entry
	parts    map[string][]string
	counters map[StepType]int
	seq      uint64
	now      func() time.Time
}

func NewMerger() *Merger {
	return &Merger{
		entries:  make(map[string]*entry),
		parts:    make(map[string][]string),
		counters: make(map[StepType]int),
		now:      time.Now,
	}
}

// WithClock replaces the timestamp source. Used by tests.
func (m *Merger) WithClock(now func() time.Time) *Merger {
	m.now = now
	return m
}

// Update applies one update and returns the effective event.
func (m *Merger) Update(u StepUpdate) StepEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.resolveID(u)
	description := u.Description
	if !IsRepeating(u.Type) {
		description = m.accumulate(id, u.Status, u.Description)
	}

	ev := StepEvent{
		ID:          id,
		StepType:    u.Type,
		Label:       u.Label,
		Description: description,
		Status:      u.Status,
		Timestamp:   m.now().UTC(),
	}

	m.seq++
	if e, ok := m.entries[id]; ok {
		e.event = ev
		e.seq = m.seq
	} else {
		m.entries[id] = &entry{event: ev, seq: m.seq}
		m.order = append(m.order, id)
	}
	return ev
}

func (m *Merger) resolveID(u StepUpdate) string {
	if u.ID != "" {
		return u.ID
	}
	if IsRepeating(u.Type) {
		m.counters[u.Type]++
		return fmt.Sprintf("%s_%d", u.Type, m.counters[u.Type])
	}
	return string(u.Type)
}

func (m *Merger) accumulate(id string, status StepStatus, description string) string {
	switch status {
	case StatusActive:
		if description == "" {
			m.parts[id] = []string{}
		} else {
			m.parts[id] = []string{description}
		}
		return description
	case StatusComplete, StatusError:
		parts, ok := m.parts[id]
		if !ok {
			return description
		}
		if description != "" {
			parts = append(parts, description)
			m.parts[id] = parts
		}
		return strings.Join(parts, descriptionSeparator)
	default:
		return description
	}
}

// Steps returns the current steps in first-seen order.
func (m *Merger) Steps() []StepEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	steps := make([]StepEvent, len(m.order))
	for i, id := range m.order {
		steps[i] = m.entries[id].event
	}
	return steps
}

func (m *Merger) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Totals{Total: len(m.order)}
	var activeSeq uint64
	for _, id := range m.order {
		e := m.entries[id]
		switch e.event.Status {
		case StatusComplete:
			t.Completed++
		case StatusActive:
			if e.seq > activeSeq {
				activeSeq = e.seq
				label := e.event.Label
				t.ActiveStep = &label
			}
		}
	}
	return t
}
