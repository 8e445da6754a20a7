// Package gate decides whether a question falls inside the supported
// subject domain: Spanish immigration law. The policy errs toward
// answering, while hard-blocking clearly out-of-scope jurisdictions.
package gate

import (
	"regexp"
	"strings"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/conversation"
	"github.com/rs/zerolog/log"
)

// historyWindow is how many recent turns carry domain context forward for
// short follow-up questions.
const historyWindow = 4

type Gate struct {
	rules     *Rules
	followUps []*regexp.Regexp
	volatile  []*regexp.Regexp
}

func New(rules *Rules) *Gate {
	g := &Gate{rules: rules}
	for _, p := range rules.FollowUpPatterns {
		g.followUps = append(g.followUps, regexp.MustCompile(p))
	}
	for _, p := range rules.VolatilePatterns {
		g.volatile = append(g.volatile, regexp.MustCompile(p))
	}
	return g
}

// Admit evaluates the rule tables in precedence order. rewritten may be
// empty; history may be nil.
func (g *Gate) Admit(question, rewritten string, history []conversation.Turn) bool {
	q := normalize(question)
	rw := normalize(rewritten)

	// Hard exclusions take precedence over every other rule.
	if g.matchesAny(q, g.rules.HardExclusions) || g.matchesAny(rw, g.rules.HardExclusions) {
		log.Info().Str("rule", "hard_exclusion").Msg("Question rejected by gate")
		return false
	}

	// Carry the domain over from recent turns so short follow-ups without
	// domain keywords of their own still get answered.
	if g.historyInDomain(history) && !g.matchesAny(q, g.rules.TopicChanges) {
		return true
	}

	if g.admitsText(q) || (rw != "" && g.admitsText(rw)) {
		return true
	}

	return false
}

// IsVolatile reports whether the question touches a category likely to go
// stale in a static corpus (fees, deadlines, current-year procedure).
func (g *Gate) IsVolatile(question string) bool {
	q := normalize(question)
	for _, re := range g.volatile {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

func (g *Gate) admitsText(text string) bool {
	if text == "" {
		return false
	}
	if g.matchesAny(text, g.rules.Greetings) ||
		g.matchesAny(text, g.rules.DomainTerms) ||
		g.matchesAny(text, g.rules.Countries) {
		return true
	}
	for _, re := range g.followUps {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (g *Gate) historyInDomain(history []conversation.Turn) bool {
	recent := conversation.Cap(history, historyWindow)
	for _, turn := range recent {
		content := normalize(turn.Content)
		if g.matchesAny(content, g.rules.DomainTerms) || g.matchesAny(content, g.rules.Countries) {
			return true
		}
	}
	return false
}

func (g *Gate) matchesAny(text string, markers []string) bool {
	if text == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
