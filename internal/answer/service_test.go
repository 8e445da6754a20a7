package answer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/assemble"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/corpus"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/gate"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/llm"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/sessionlog"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/stream"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/websearch"
)

type fakeCorpus struct {
	corpus *corpus.Corpus
	err    error
}

func (f *fakeCorpus) Load(ctx context.Context) (*corpus.Corpus, error) {
	return f.corpus, f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeLLM struct {
	chunks  []string
	err     error
	calls   int
	prompts []string
}

func (f *fakeLLM) Invoke(ctx context.Context, request llm.Request) (*llm.Response, error) {
	f.calls++
	f.prompts = append(f.prompts, request.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: strings.Join(f.chunks, ""), StopReason: "end_turn"}, nil
}

func (f *fakeLLM) InvokeStream(ctx context.Context, request llm.Request, callback llm.StreamCallback) (*llm.Response, error) {
	f.calls++
	f.prompts = append(f.prompts, request.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	var content string
	for _, chunk := range f.chunks {
		if err := callback(chunk); err != nil {
			return nil, err
		}
		content += chunk
	}
	return &llm.Response{Content: content, StopReason: "end_turn"}, nil
}

type fakeWeb struct {
	results []websearch.Result
	calls   int
}

func (f *fakeWeb) Search(ctx context.Context, query string, maxResults int) []websearch.Result {
	f.calls++
	return f.results
}

type fakeResolver struct {
	texts map[string]string
}

func (f *fakeResolver) Resolve(ctx context.Context, sourceFile string) (string, error) {
	text, ok := f.texts[sourceFile]
	if !ok {
		return "", errors.New("not found")
	}
	return text, nil
}

func testGate(t *testing.T) *gate.Gate {
	t.Helper()
	rules, err := gate.LoadRules("")
	if err != nil {
		t.Fatal(err)
	}
	return gate.New(rules)
}

func arraigoCorpus() *corpus.Corpus {
	return &corpus.Corpus{
		Dimension: 3,
		Entries: []corpus.Entry{
			{ID: "c1", SourceFile: "arraigo_social.md", RangeStart: 0, RangeEnd: 40, Embedding: []float32{1, 0, 0}},
			{ID: "c2", SourceFile: "asilo.md", RangeStart: 0, RangeEnd: 40, Embedding: []float32{0, 1, 0}},
		},
	}
}

func newTestService(c *corpus.Corpus, embedder *fakeEmbedder, model *fakeLLM, web WebSearcher) *Service {
	resolver := &fakeResolver{texts: map[string]string{
		"arraigo_social.md": "Para el arraigo social necesitas: empadronamiento, contrato de trabajo y antecedentes penales.",
		"asilo.md":          "La solicitud de asilo se presenta en...",
	}}

	return NewService(
		&fakeCorpus{corpus: c},
		embedder,
		nil,
		assemble.New(resolver, 4000),
		web,
		model,
		nil,
		sessionlog.NopSink{},
		Config{WebFallbackMinScore: 0.55},
	)
}

func service(t *testing.T, c *corpus.Corpus, embedder *fakeEmbedder, model *fakeLLM, web WebSearcher) *Service {
	t.Helper()
	s := newTestService(c, embedder, model, web)
	s.gate = testGate(t)
	return s
}

func TestAnswer_KBOnlyScenario(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	model := &fakeLLM{chunks: []string{"Necesitas ", "empadronamiento y contrato."}}
	web := &fakeWeb{}
	s := service(t, arraigoCorpus(), embedder, model, web)

	req := AskRequest{Question: "¿Qué documentos necesito para el arraigo social?"}
	req.SetDefaults(Defaults{})

	resp, err := s.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Route != RouteKBOnly {
		t.Errorf("expected KB_ONLY route, got %s", resp.Route)
	}
	if len(resp.Citations) == 0 {
		t.Error("expected non-empty citations")
	}
	if resp.Answer == "" {
		t.Error("expected non-empty answer")
	}
	if web.calls != 0 {
		t.Error("web fallback must not run when local evidence is strong")
	}
	if !strings.Contains(model.prompts[0], "empadronamiento") {
		t.Error("prompt should carry the assembled excerpt")
	}
	if resp.RequestID == "" {
		t.Error("expected a request id")
	}
}

func TestAnswer_OutOfDomainShortCircuits(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	model := &fakeLLM{chunks: []string{"nunca"}}
	s := service(t, arraigoCorpus(), embedder, model, &fakeWeb{})

	req := AskRequest{Question: "¿Cómo consigo la green card con USCIS?"}
	req.SetDefaults(Defaults{})

	resp, err := s.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Route != RouteOutOfDomain {
		t.Errorf("expected OUT_OF_DOMAIN, got %s", resp.Route)
	}
	if len(resp.Citations) != 0 {
		t.Error("expected zero citations")
	}
	if resp.Answer != SpecializationNotice {
		t.Errorf("expected the fixed specialization notice, got %q", resp.Answer)
	}
	if embedder.calls != 0 {
		t.Error("retrieval must not run for out-of-domain questions")
	}
	if model.calls != 0 {
		t.Error("generation must not run for out-of-domain questions")
	}
}

func TestAnswer_KBEmptyWithKbOnly(t *testing.T) {
	// Query orthogonal to every corpus entry: no hits above threshold.
	embedder := &fakeEmbedder{vector: []float32{0, 0, 1}}
	model := &fakeLLM{chunks: []string{"nunca"}}
	web := &fakeWeb{results: []websearch.Result{{URL: "https://x", Snippet: "y"}}}
	s := service(t, arraigoCorpus(), embedder, model, web)

	req := AskRequest{Question: "¿Qué es el arraigo familiar?", KbOnly: true}
	req.SetDefaults(Defaults{})

	resp, err := s.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Route != RouteKBEmpty {
		t.Errorf("expected KB_EMPTY, got %s", resp.Route)
	}
	if web.calls != 0 {
		t.Error("kbOnly must suppress the web fallback")
	}
	if resp.Answer != GuidanceMessage {
		t.Errorf("expected the fixed guidance message, got %q", resp.Answer)
	}
	if model.calls != 0 {
		t.Error("generation must be skipped without grounding evidence")
	}
}

func TestAnswer_WebFallbackOnVolatileQuestion(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0, 0, 1}}
	model := &fakeLLM{chunks: []string{"La tasa vigente es..."}}
	web := &fakeWeb{results: []websearch.Result{
		{Title: "Tasas", URL: "https://boe.es/tasas", Snippet: "Tasa 790 código 052: 38,88 EUR"},
	}}
	s := service(t, arraigoCorpus(), embedder, model, web)

	req := AskRequest{Question: "¿Cuánto cuesta la tasa del arraigo en 2026?"}
	req.SetDefaults(Defaults{})

	resp, err := s.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if web.calls == 0 {
		t.Fatal("expected at least one web search attempt")
	}
	if resp.Route != RouteWebFallback {
		t.Errorf("expected WEB_FALLBACK, got %s", resp.Route)
	}
	if len(resp.Citations) != 1 || !resp.Citations[0].Web {
		t.Error("expected a single web citation")
	}
}

func TestAnswer_WebFallbackEmptyYieldsGuidance(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0, 0, 1}}
	model := &fakeLLM{chunks: []string{"nunca"}}
	web := &fakeWeb{} // provider finds nothing
	s := service(t, arraigoCorpus(), embedder, model, web)

	req := AskRequest{Question: "¿Cuánto cuesta la tasa del arraigo en 2026?"}
	req.SetDefaults(Defaults{})

	resp, err := s.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Route != RouteGuidance {
		t.Errorf("expected GUIDANCE, got %s", resp.Route)
	}
	if resp.Answer != GuidanceMessage {
		t.Errorf("expected the fixed guidance message, got %q", resp.Answer)
	}
}

func TestPrepare_DimensionMismatch(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}} // corpus dimension is 3
	s := service(t, arraigoCorpus(), embedder, &fakeLLM{}, &fakeWeb{})

	req := AskRequest{Question: "¿Qué es el arraigo social?"}
	req.SetDefaults(Defaults{})

	_, err := s.Prepare(context.Background(), req)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPrepare_CorpusUnavailable(t *testing.T) {
	s := service(t, arraigoCorpus(), &fakeEmbedder{vector: []float32{1, 0, 0}}, &fakeLLM{}, &fakeWeb{})
	s.corpus = &fakeCorpus{err: corpus.ErrCorpusUnavailable}

	req := AskRequest{Question: "¿Qué es el arraigo social?"}
	req.SetDefaults(Defaults{})

	if _, err := s.Prepare(context.Background(), req); !errors.Is(err, corpus.ErrCorpusUnavailable) {
		t.Errorf("expected ErrCorpusUnavailable, got %v", err)
	}
}

func TestDeliver_EventOrdering(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	model := &fakeLLM{chunks: []string{"uno ", "dos ", "tres"}}
	s := service(t, arraigoCorpus(), embedder, model, &fakeWeb{})

	req := AskRequest{Question: "¿Qué documentos necesito para el arraigo social?"}
	req.SetDefaults(Defaults{})

	p, err := s.Prepare(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	em := stream.NewNDJSONEmitter(context.Background(), &buf, nil)
	s.Deliver(context.Background(), req, p, em)

	events, err := stream.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if events[0].Type != stream.EventInit {
		t.Errorf("first event must be init, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != stream.EventDone || !last.Done {
		t.Error("last event must be the done record")
	}

	sourcesAt, firstDeltaAt, doneCount := -1, -1, 0
	for i, ev := range events {
		switch ev.Type {
		case stream.EventSources:
			sourcesAt = i
		case stream.EventDelta:
			if firstDeltaAt == -1 {
				firstDeltaAt = i
			}
		case stream.EventDone:
			doneCount++
		}
	}
	if sourcesAt == -1 || firstDeltaAt == -1 || sourcesAt > firstDeltaAt {
		t.Errorf("sources (%d) must precede the first delta (%d)", sourcesAt, firstDeltaAt)
	}
	if doneCount != 1 {
		t.Errorf("expected exactly one done record, got %d", doneCount)
	}
}

func TestDeliver_GenerationFailureStillCloses(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	model := &fakeLLM{err: errors.New("model exploded")}
	s := service(t, arraigoCorpus(), embedder, model, &fakeWeb{})

	req := AskRequest{Question: "¿Qué documentos necesito para el arraigo social?"}
	req.SetDefaults(Defaults{})

	p, err := s.Prepare(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	em := stream.NewNDJSONEmitter(context.Background(), &buf, nil)
	s.Deliver(context.Background(), req, p, em)

	events, err := stream.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	sawError := false
	for _, ev := range events {
		if ev.Type == stream.EventError && ev.Error != "" {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected a terminal error event")
	}
	last := events[len(events)-1]
	if last.Type != stream.EventDone {
		t.Error("stream must close with done even on generation failure")
	}
}

func TestDeliver_CancellationStopsDeltas(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	deltasSeen := 0
	model := &fakeLLM{chunks: []string{"a", "b", "c", "d", "e"}}
	s := service(t, arraigoCorpus(), embedder, model, &fakeWeb{})

	req := AskRequest{Question: "¿Qué documentos necesito para el arraigo social?"}
	req.SetDefaults(Defaults{})

	p, err := s.Prepare(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	em := stream.NewNDJSONEmitter(ctx, &buf, nil)

	// Cancel after the second delta reaches the wire.
	s.llm = &cancellingLLM{inner: model, cancel: cancel, after: 2, seen: &deltasSeen}

	s.Deliver(ctx, req, p, em)

	events, err := stream.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	deltas := 0
	for _, ev := range events {
		if ev.Type == stream.EventDelta {
			deltas++
		}
	}
	if deltas > 2 {
		t.Errorf("no deltas may be observed after the abort point, got %d", deltas)
	}
}

// cancellingLLM aborts the caller's context after n chunks, simulating a
// client that detaches mid-stream.
type cancellingLLM struct {
	inner  *fakeLLM
	cancel context.CancelFunc
	after  int
	seen   *int
}

func (c *cancellingLLM) Invoke(ctx context.Context, request llm.Request) (*llm.Response, error) {
	return c.inner.Invoke(ctx, request)
}

func (c *cancellingLLM) InvokeStream(ctx context.Context, request llm.Request, callback llm.StreamCallback) (*llm.Response, error) {
	wrapped := func(chunk string) error {
		*c.seen++
		if *c.seen == c.after {
			defer c.cancel()
		}
		return callback(chunk)
	}
	return c.inner.InvokeStream(ctx, request, wrapped)
}

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     AskRequest
		wantErr bool
	}{
		{name: "valid", req: AskRequest{Question: "¿Qué es el NIE?"}, wantErr: false},
		{name: "empty question", req: AskRequest{}, wantErr: true},
		{name: "topK too large", req: AskRequest{Question: "x", TopK: 100}, wantErr: true},
		{name: "minScore above 1", req: AskRequest{Question: "x", MinScore: 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAskRequest_SetDefaults(t *testing.T) {
	req := AskRequest{Question: "x"}
	req.SetDefaults(Defaults{})
	if req.TopK != 8 {
		t.Errorf("expected default topK 8, got %d", req.TopK)
	}
	if req.MinScore != 0.35 {
		t.Errorf("expected default minScore 0.35, got %f", req.MinScore)
	}

	req = AskRequest{Question: "x"}
	req.SetDefaults(Defaults{TopK: 12, MinScore: 0.5})
	if req.TopK != 12 || req.MinScore != 0.5 {
		t.Errorf("configured defaults not applied: topK=%d minScore=%f", req.TopK, req.MinScore)
	}

	req = AskRequest{Question: "x", TopK: 3, MinScore: 0.7}
	req.SetDefaults(Defaults{TopK: 12, MinScore: 0.5})
	if req.TopK != 3 || req.MinScore != 0.7 {
		t.Errorf("explicit request values must win: topK=%d minScore=%f", req.TopK, req.MinScore)
	}
}
