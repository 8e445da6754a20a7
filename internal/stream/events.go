// Package stream is the incremental delivery channel between the answer
// orchestrator and the client: a closed set of event types encoded as
// newline-delimited JSON records.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/assemble"
)

type EventType string

const (
	EventInit    EventType = "init"
	EventMeta    EventType = "meta"
	EventSources EventType = "sources"
	EventDelta   EventType = "delta"
	EventError   EventType = "error"
	EventMetrics EventType = "metrics"
	EventDone    EventType = "done"
)

// Metrics is the side observation emitted before the terminal record.
type Metrics struct {
	RuntimeMs int64   `json:"runtimeMs"`
	HitCount  int     `json:"hitCount"`
	TopScore  float64 `json:"topScore"`
	Route     string  `json:"route"`
}

// Event is one record of the stream. Ordering per request: init first,
// meta and sources before any delta, done always last. No events follow
// done.
type Event struct {
	Type      EventType              `json:"type"`
	RequestID string                 `json:"requestId,omitempty"`
	Question  string                 `json:"question,omitempty"`
	Route     string                 `json:"route,omitempty"`
	Admitted  *bool                  `json:"admitted,omitempty"`
	Sources   []assemble.EnrichedHit `json:"sources,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metrics   *Metrics               `json:"metrics,omitempty"`
	Done      bool                   `json:"done,omitempty"`
}

// Emitter delivers events to a client. Implementations must tolerate
// being closed from either side.
type Emitter interface {
	Emit(event Event) error
	Close()
}

// NDJSONEmitter flushes each event to the wire as it is produced.
// After the caller detaches (context cancelled) or the done record is
// written, further emits are suppressed without error.
type NDJSONEmitter struct {
	ctx     context.Context
	enc     *json.Encoder
	flusher http.Flusher
	closed  bool
}

func NewNDJSONEmitter(ctx context.Context, w io.Writer, flusher http.Flusher) *NDJSONEmitter {
	return &NDJSONEmitter{
		ctx:     ctx,
		enc:     json.NewEncoder(w),
		flusher: flusher,
	}
}

func (e *NDJSONEmitter) Emit(event Event) error {
	if e.closed {
		return nil
	}
	if err := e.ctx.Err(); err != nil {
		// Caller is gone. Stop issuing writes rather than erroring into a
		// detached connection.
		e.closed = true
		return err
	}

	if err := e.enc.Encode(event); err != nil {
		e.closed = true
		return fmt.Errorf("encoding stream event: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}

	if event.Type == EventDone {
		e.closed = true
	}
	return nil
}

func (e *NDJSONEmitter) Close() {
	e.closed = true
}

// Collector is the single-shot mode: it accumulates everything and the
// caller reads the result once the request completes.
type Collector struct {
	Events []Event
	Answer string
}

func (c *Collector) Emit(event Event) error {
	c.Events = append(c.Events, event)
	if event.Type == EventDelta {
		c.Answer += event.Text
	}
	return nil
}

func (c *Collector) Close() {}

// Decode reads a full NDJSON event stream back into events. The client
// half of the encoder, used by consumers and tests.
func Decode(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decoding stream event: %w", err)
		}
		events = append(events, ev)
	}

	return events, scanner.Err()
}
