package stream

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNDJSONEmitter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	em := NewNDJSONEmitter(context.Background(), &buf, nil)

	admitted := true
	events := []Event{
		{Type: EventInit, RequestID: "req-1", Question: "¿Qué es el arraigo?"},
		{Type: EventMeta, Route: "KB_ONLY", Admitted: &admitted},
		{Type: EventSources},
		{Type: EventDelta, Text: "El arraigo "},
		{Type: EventDelta, Text: "es..."},
		{Type: EventMetrics, Metrics: &Metrics{RuntimeMs: 12, HitCount: 2, TopScore: 0.8, Route: "KB_ONLY"}},
		{Type: EventDone, Done: true},
	}
	for _, ev := range events {
		if err := em.Emit(ev); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(decoded))
	}
	if decoded[0].Type != EventInit {
		t.Error("first event must be init")
	}
	if decoded[len(decoded)-1].Type != EventDone || !decoded[len(decoded)-1].Done {
		t.Error("last event must be the done record")
	}
	if decoded[3].Text != "El arraigo " {
		t.Errorf("delta text mangled: %q", decoded[3].Text)
	}
}

func TestNDJSONEmitter_NoEventsAfterDone(t *testing.T) {
	var buf bytes.Buffer
	em := NewNDJSONEmitter(context.Background(), &buf, nil)

	_ = em.Emit(Event{Type: EventDone, Done: true})
	_ = em.Emit(Event{Type: EventDelta, Text: "late"})

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("no events may follow done, got %d", len(decoded))
	}
}

func TestNDJSONEmitter_CancellationSuppressesWrites(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	em := NewNDJSONEmitter(ctx, &buf, nil)

	if err := em.Emit(Event{Type: EventDelta, Text: "before"}); err != nil {
		t.Fatalf("emit before cancel failed: %v", err)
	}

	cancel()

	if err := em.Emit(Event{Type: EventDelta, Text: "after"}); err == nil {
		t.Error("emit after cancel should report the context error")
	}
	// A later emit does not error into the detached caller.
	if err := em.Emit(Event{Type: EventDone, Done: true}); err != nil {
		t.Errorf("emit after close should be a no-op, got %v", err)
	}

	if strings.Contains(buf.String(), "after") {
		t.Error("no writes may happen after cancellation")
	}
}

func TestCollector_AccumulatesAnswer(t *testing.T) {
	var c Collector

	_ = c.Emit(Event{Type: EventInit, RequestID: "r"})
	_ = c.Emit(Event{Type: EventDelta, Text: "foo "})
	_ = c.Emit(Event{Type: EventDelta, Text: "bar"})
	_ = c.Emit(Event{Type: EventDone, Done: true})

	if c.Answer != "foo bar" {
		t.Errorf("expected accumulated answer, got %q", c.Answer)
	}
	if len(c.Events) != 4 {
		t.Errorf("expected 4 events, got %d", len(c.Events))
	}
}

func TestDecode_SkipsBlankLines(t *testing.T) {
	input := "{\"type\":\"init\"}\n\n{\"type\":\"done\",\"done\":true}\n"
	events, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}
