package stream

// Emitter is the handle pipeline stages use to report progress.
type Emitter interface {
	Emit(u StepUpdate) StepEvent
}

// StepObserver sees every merged step together with the full ordered step
// list and the recomputed totals.
type StepObserver func(ev StepEvent, steps []StepEvent, totals Totals)

// Recorder merges updates, notifies the observer and publishes the result
// on the bus. It is meant to be driven by a single producer goroutine at a
// time.
type Recorder struct {
	merger   *Merger
	bus      *Bus
	observer StepObserver
}

func NewRecorder(merger *Merger, bus *Bus, observer StepObserver) *Recorder {
	return &Recorder{merger: merger, bus: bus, observer: observer}
}

func (r *Recorder) Emit(u StepUpdate) StepEvent {
	ev := r.merger.Update(u)
	if r.observer != nil {
		r.observer(ev, r.merger.Steps(), r.merger.Totals())
	}
	if r.bus != nil {
		_ = r.bus.Publish(ev)
	}
	return ev
}

func (r *Recorder) Steps() []StepEvent {
	return r.merger.Steps()
}

// Discard is an Emitter that only merges, used by the non-streaming path.
type Discard struct {
	merger *Merger
}

func NewDiscard() *Discard {
	return &Discard{merger: NewMerger()}
}

func (d *Discard) Emit(u StepUpdate) StepEvent {
	return d.merger.Update(u)
}

func (d *Discard) Steps() []StepEvent {
	return d.merger.Steps()
}
