package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/assemble"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/corpus"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/embedding"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/gate"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/llm"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/rank"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/sessionlog"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/stream"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/websearch"
	"github.com/rs/zerolog/log"
)

// CorpusLoader hands out the memoized corpus.
type CorpusLoader interface {
	Load(ctx context.Context) (*corpus.Corpus, error)
}

// WebSearcher is the live search fallback. An empty result set is a
// legitimate "no usable fallback" signal, never an error.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) []websearch.Result
}

// Rewriter normalizes the question before gating and embedding.
type Rewriter interface {
	Rewrite(ctx context.Context, question string) (string, error)
}

type Config struct {
	MaxHistoryTurns     int
	WebFallbackMinScore float64
	MaxWebResults       int
	MaxTokens           int
	Temperature         float64
	Boosts              []rank.Boost
}

// Service sequences gate, retrieval, assembly, generation and delivery.
type Service struct {
	corpus    CorpusLoader
	embedder  embedding.Embedder
	gate      *gate.Gate
	assembler *assemble.Assembler
	web       WebSearcher
	llm       llm.Client
	rewriter  Rewriter
	sink      sessionlog.Sink
	config    Config
}

func NewService(
	corpusLoader CorpusLoader,
	embedder embedding.Embedder,
	domainGate *gate.Gate,
	assembler *assemble.Assembler,
	web WebSearcher,
	llmClient llm.Client,
	rewriter Rewriter,
	sink sessionlog.Sink,
	config Config,
) *Service {
	if config.MaxHistoryTurns <= 0 {
		config.MaxHistoryTurns = 10
	}
	if config.MaxWebResults <= 0 {
		config.MaxWebResults = 5
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2000
	}
	return &Service{
		corpus:    corpusLoader,
		embedder:  embedder,
		gate:      domainGate,
		assembler: assembler,
		web:       web,
		llm:       llmClient,
		rewriter:  rewriter,
		sink:      sink,
		config:    config,
	}
}

// Prepared is everything computed before any content is generated: the
// admission decision, the retrieved evidence, and the route taken. The
// transport exposes it as response headers before the first byte of the
// stream.
type Prepared struct {
	RequestID string
	Question  string
	Rewritten string
	Admitted  bool
	Route     Route
	Citations []assemble.EnrichedHit
	TopScore  float64
	// fixed is set when generation is skipped and a fixed message is
	// delivered instead (out-of-domain notice or empty-evidence guidance).
	fixed string
	start time.Time
}

// Prepare runs the gate, retrieval and assembly stages. It returns an
// error only for request-fatal faults; weak or absent evidence is a
// defined outcome, not an error.
func (s *Service) Prepare(ctx context.Context, req AskRequest) (*Prepared, error) {
	p := &Prepared{
		RequestID: uuid.NewString(),
		Question:  req.Question,
		start:     time.Now(),
	}

	// Rewrite is best-effort; the gate and the embedder both prefer the
	// normalized form when it exists.
	if s.rewriter != nil {
		if rewritten, err := s.rewriter.Rewrite(ctx, req.Question); err == nil {
			p.Rewritten = rewritten
		}
	}

	p.Admitted = s.gate.Admit(req.Question, p.Rewritten, req.ConversationHistory)
	if !p.Admitted {
		p.Route = RouteOutOfDomain
		p.fixed = SpecializationNotice
		return p, nil
	}

	c, err := s.corpus.Load(ctx)
	if err != nil {
		return nil, err
	}

	embedText := req.Question
	if p.Rewritten != "" {
		embedText = p.Rewritten
	}
	query, err := s.embedder.Embed(ctx, embedText)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(query) != c.Dimension {
		return nil, fmt.Errorf("%w: query %d, corpus %d", ErrDimensionMismatch, len(query), c.Dimension)
	}

	hits := rank.Rank(query, c, req.TopK, req.MinScore, s.config.Boosts)
	if len(hits) > 0 {
		p.TopScore = hits[0].Score
		p.Citations = s.assembler.Assemble(ctx, hits)
	}

	webAttempted := false
	if !req.KbOnly && s.web != nil && s.needsFallback(req.Question, hits) {
		webAttempted = true
		results := s.web.Search(ctx, embedText, s.config.MaxWebResults)
		p.Citations = append(p.Citations, s.assembler.AssembleFromWeb(results)...)
	}

	p.Route = deriveRoute(p.Citations, webAttempted)
	if len(p.Citations) == 0 {
		// Never let the model improvise with zero grounding evidence.
		p.fixed = GuidanceMessage
	}

	return p, nil
}

// needsFallback holds when local evidence is absent, below the confidence
// threshold, or the question matches a volatile pattern.
func (s *Service) needsFallback(question string, hits []rank.Hit) bool {
	if len(hits) == 0 {
		return true
	}
	if hits[0].Score < s.config.WebFallbackMinScore {
		return true
	}
	return s.gate.IsVolatile(question)
}

// deriveRoute classifies the evidence path actually taken. It is an
// observation, not a control input.
func deriveRoute(citations []assemble.EnrichedHit, webAttempted bool) Route {
	var local, web bool
	for _, c := range citations {
		if c.Web {
			web = true
		} else {
			local = true
		}
	}

	switch {
	case web:
		return RouteWebFallback
	case local:
		return RouteKBOnly
	case webAttempted:
		return RouteGuidance
	default:
		return RouteKBEmpty
	}
}

// Deliver drives the event protocol for a prepared request: init first,
// meta and sources before any delta, done always last. The done record is
// emitted on every exit path, including generation failures.
func (s *Service) Deliver(ctx context.Context, req AskRequest, p *Prepared, em stream.Emitter) {
	var answer string
	var genErr error

	defer func() {
		metrics := stream.Metrics{
			RuntimeMs: time.Since(p.start).Milliseconds(),
			HitCount:  len(p.Citations),
			TopScore:  p.TopScore,
			Route:     string(p.Route),
		}
		_ = em.Emit(stream.Event{Type: stream.EventMetrics, Metrics: &metrics})
		_ = em.Emit(stream.Event{Type: stream.EventDone, Done: true})
		em.Close()

		if genErr == nil && ctx.Err() == nil {
			s.sink.Record(sessionlog.Summary{
				RequestID: p.RequestID,
				Question:  p.Question,
				Answer:    answer,
				Route:     string(p.Route),
				HitCount:  len(p.Citations),
				TopScore:  p.TopScore,
				RuntimeMs: metrics.RuntimeMs,
				CreatedAt: time.Now(),
			})
		}
	}()

	if err := em.Emit(stream.Event{Type: stream.EventInit, RequestID: p.RequestID, Question: p.Question}); err != nil {
		return
	}

	admitted := p.Admitted
	if err := em.Emit(stream.Event{Type: stream.EventMeta, Route: string(p.Route), Admitted: &admitted}); err != nil {
		return
	}
	if err := em.Emit(stream.Event{Type: stream.EventSources, Sources: p.Citations}); err != nil {
		return
	}

	if p.fixed != "" {
		answer = p.fixed
		_ = em.Emit(stream.Event{Type: stream.EventDelta, Text: p.fixed})
		return
	}

	prompt := buildPrompt(p.Question, p.Citations, req.ConversationHistory, s.config.MaxHistoryTurns)

	_, genErr = s.llm.InvokeStream(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}, func(chunk string) error {
		answer += chunk
		return em.Emit(stream.Event{Type: stream.EventDelta, Text: chunk})
	})
	if genErr != nil {
		log.Error().Err(genErr).Str("request_id", p.RequestID).Msg("Generation failed")
		_ = em.Emit(stream.Event{Type: stream.EventError, Error: genErr.Error()})
	}
}

// Answer is the single-shot mode: the same pipeline collected into one
// response.
func (s *Service) Answer(ctx context.Context, req AskRequest) (AskResponse, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return AskResponse{}, err
	}

	var answer string
	var genErr error

	if p.fixed != "" {
		answer = p.fixed
	} else {
		prompt := buildPrompt(p.Question, p.Citations, req.ConversationHistory, s.config.MaxHistoryTurns)
		var resp *llm.Response
		resp, genErr = s.llm.Invoke(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   s.config.MaxTokens,
			Temperature: s.config.Temperature,
		})
		if genErr != nil {
			return AskResponse{}, fmt.Errorf("generation failed: %w", genErr)
		}
		answer = resp.Content
	}

	runtimeMs := time.Since(p.start).Milliseconds()
	s.sink.Record(sessionlog.Summary{
		RequestID: p.RequestID,
		Question:  p.Question,
		Answer:    answer,
		Route:     string(p.Route),
		HitCount:  len(p.Citations),
		TopScore:  p.TopScore,
		RuntimeMs: runtimeMs,
		CreatedAt: time.Now(),
	})

	return AskResponse{
		OK:        true,
		Question:  p.Question,
		Answer:    answer,
		Citations: p.Citations,
		Route:     p.Route,
		TopScore:  p.TopScore,
		RequestID: p.RequestID,
		RuntimeMs: runtimeMs,
	}, nil
}
