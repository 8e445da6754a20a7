package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/corpus"
)

// maxScore keeps a strict ordering margin below the theoretical maximum so
// a boosted hit can never saturate to exactly 1.0.
const maxScore = 0.999

// Hit is a scored corpus entry. Hits are always sorted descending by score
// and every returned hit satisfies score >= the requested minimum.
type Hit struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	SourceFile string  `json:"sourceFile"`
	RangeStart int     `json:"rangeStart"`
	RangeEnd   int     `json:"rangeEnd"`
}

// Boost adds Amount to the score of any entry whose source file contains
// Substring. It is a relevance-tuning hook, not part of the base ranking.
type Boost struct {
	Substring string
	Amount    float64
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector has zero norm, so a zero query never
// divides by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores the query against every corpus entry, filters by minScore,
// and returns at most k hits in descending score order. Ties keep the
// original corpus order. The scan is exhaustive, which is fine at corpus
// sizes in the low tens of thousands.
func Rank(query []float32, c *corpus.Corpus, k int, minScore float64, boosts []Boost) []Hit {
	hits := make([]Hit, 0, k)

	for _, e := range c.Entries {
		score := CosineSimilarity(query, e.Embedding)

		for _, b := range boosts {
			if b.Substring != "" && strings.Contains(e.SourceFile, b.Substring) {
				score += b.Amount
			}
		}
		if score > maxScore {
			score = maxScore
		}

		if score < minScore {
			continue
		}

		hits = append(hits, Hit{
			ID:         e.ID,
			Score:      score,
			SourceFile: e.SourceFile,
			RangeStart: e.RangeStart,
			RangeEnd:   e.RangeEnd,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}

	return hits
}
