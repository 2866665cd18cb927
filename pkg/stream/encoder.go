package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type EventKind string

const (
	KindStatus      EventKind = "status"
	KindCoTStep     EventKind = "cot_step"
	KindContent     EventKind = "content"
	KindSources     EventKind = "sources"
	KindSuggestions EventKind = "suggestions"
	KindError       EventKind = "error"
	KindDone        EventKind = "done"
)

const DefaultContentChunkSize = 5

type frame struct {
	Type EventKind   `json:"type"`
	Data interface{} `json:"data"`
}

// Frame renders one server-sent event: `data: <json>\n\n`.
func Frame(kind EventKind, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(frame{Type: kind, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", kind, err)
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

// SliceContent splits text into pieces of at most size runes.
func SliceContent(text string, size int) []string {
	if size <= 0 {
		size = DefaultContentChunkSize
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	slices := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		slices = append(slices, string(runes[i:end]))
	}
	return slices
}

type flushWriter interface {
	io.Writer
	Flush() error
}

// Encoder writes frames and flushes after each one so the client sees them
// immediately. A write or flush error means the client went away; after the
// first error, or after a terminal frame, every call is a no-op returning
// the same error.
type Encoder struct {
	w        flushWriter
	err      error
	terminal bool
}

func NewEncoder(w flushWriter) *Encoder {
	return &Encoder{w: w}
}

var errTerminated = errors.New("stream already terminated")

func (e *Encoder) write(kind EventKind, data interface{}) error {
	if e.err != nil {
		return e.err
	}
	if e.terminal {
		return errTerminated
	}
	b, err := Frame(kind, data)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		e.err = err
		return err
	}
	if err := e.w.Flush(); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *Encoder) Status(s string) error { return e.write(KindStatus, s) }

func (e *Encoder) Step(ev StepEvent) error { return e.write(KindCoTStep, ev) }

func (e *Encoder) Content(text string) error { return e.write(KindContent, text) }

func (e *Encoder) Sources(docs []SourceDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return e.write(KindSources, docs)
}

func (e *Encoder) Suggestions(s []string) error {
	if len(s) == 0 {
		return nil
	}
	return e.write(KindSuggestions, s)
}

// Error ends the stream without a done frame.
func (e *Encoder) Error(msg string) error {
	err := e.write(KindError, msg)
	e.terminal = true
	return err
}

func (e *Encoder) Done() error {
	err := e.write(KindDone, nil)
	e.terminal = true
	return err
}

// Err reports the first write error, if any.
func (e *Encoder) Err() error {
	return e.err
}
