// Package assemble materializes ranked hits into bounded text excerpts
// with citation-friendly provenance.
package assemble

import (
	"context"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/rank"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/sourcetext"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/websearch"
	"github.com/rs/zerolog/log"
)

// DefaultMaxExcerptChars is deliberately large: numbered legal requirement
// lists lose obligations silently when truncated mid-list.
const DefaultMaxExcerptChars = 4000

var whitespace = regexp.MustCompile(`\s+`)

// EnrichedHit is a ranked hit plus its excerpt and provenance. Exactly one
// provenance holds: local hits carry a file locator and never a URL, web
// hits carry a URL and a zero score.
type EnrichedHit struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	SourceFile    string  `json:"sourceFile,omitempty"`
	RangeStart    int     `json:"rangeStart,omitempty"`
	RangeEnd      int     `json:"rangeEnd,omitempty"`
	Excerpt       string  `json:"excerpt"`
	SourceLocator string  `json:"sourceLocator"`
	Web           bool    `json:"web"`
}

type Assembler struct {
	resolver sourcetext.Resolver
	maxChars int
}

func New(resolver sourcetext.Resolver, maxChars int) *Assembler {
	if maxChars <= 0 {
		maxChars = DefaultMaxExcerptChars
	}
	return &Assembler{
		resolver: resolver,
		maxChars: maxChars,
	}
}

// Assemble resolves every hit's source range into an excerpt. Distinct
// source files are fetched concurrently, each file only once. A failed
// fetch degrades the hits from that file to empty excerpts instead of
// aborting the batch.
func (a *Assembler) Assemble(ctx context.Context, hits []rank.Hit) []EnrichedHit {
	if len(hits) == 0 {
		return nil
	}

	files := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		files[h.SourceFile] = struct{}{}
	}

	type fetched struct {
		file string
		text string
	}

	results := make(chan fetched, len(files))
	var wg sync.WaitGroup

	for file := range files {
		wg.Add(1)
		go func(file string) {
			defer wg.Done()
			text, err := a.resolver.Resolve(ctx, file)
			if err != nil {
				log.Warn().Err(err).Str("source_file", file).Msg("Source text fetch failed, hit degraded")
				text = ""
			}
			results <- fetched{file: file, text: text}
		}(file)
	}

	wg.Wait()
	close(results)

	texts := make(map[string]string, len(files))
	for r := range results {
		texts[r.file] = r.text
	}

	// Merge back against the original hit order.
	enriched := make([]EnrichedHit, 0, len(hits))
	for _, h := range hits {
		enriched = append(enriched, EnrichedHit{
			ID:            h.ID,
			Score:         h.Score,
			SourceFile:    h.SourceFile,
			RangeStart:    h.RangeStart,
			RangeEnd:      h.RangeEnd,
			Excerpt:       a.excerpt(texts[h.SourceFile], h.RangeStart, h.RangeEnd),
			SourceLocator: h.SourceFile,
		})
	}

	return enriched
}

// AssembleFromWeb maps provider snippets to enriched hits. Results without
// a URL are dropped; the URL is the discriminator the renderer uses for
// external provenance.
func (a *Assembler) AssembleFromWeb(results []websearch.Result) []EnrichedHit {
	var enriched []EnrichedHit
	for i, r := range results {
		if r.URL == "" {
			log.Warn().Int("index", i).Msg("Web result without URL dropped")
			continue
		}
		enriched = append(enriched, EnrichedHit{
			ID:            r.URL,
			Excerpt:       a.truncate(collapse(r.Snippet)),
			SourceLocator: r.URL,
			Web:           true,
		})
	}
	return enriched
}

// excerpt slices [start,end) out of text with both bounds clamped to the
// text's actual length. Corpus ranges are byte offsets and carry no
// rune-alignment guarantee, so both bounds are nudged onto rune starts
// before slicing.
func (a *Assembler) excerpt(text string, start, end int) string {
	if text == "" {
		return ""
	}
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	if start >= end {
		return ""
	}
	return a.truncate(collapse(text[start:end]))
}

func (a *Assembler) truncate(s string) string {
	if len(s) <= a.maxChars {
		return s
	}
	cut := a.maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func collapse(s string) string {
	return whitespace.ReplaceAllString(s, " ")
}
