package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/llm"
	"github.com/rs/zerolog/log"
)

// Rewriter normalizes a user question before gating and embedding. A
// failed rewrite falls back to the original question.
type Rewriter struct {
	client llm.Client
}

func New(client llm.Client) *Rewriter {
	return &Rewriter{client: client}
}

func (r *Rewriter) Rewrite(ctx context.Context, originalQuestion string) (string, error) {
	prompt := fmt.Sprintf(`Eres un asistente de normalización de consultas para un sistema de búsqueda semántica sobre extranjería española.

Pregunta original: "%s"

Reescribe la pregunta para que sea:
1. Más específica y clara
2. Mejor para búsqueda semántica
3. Sin errores tipográficos ni gramaticales
4. Centrada en trámites y normativa de extranjería en España

Devuelve SOLO la pregunta reescrita, nada más.`, originalQuestion)

	response, err := r.client.Invoke(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   200,
		Temperature: 0.2,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to rewrite question")
		return originalQuestion, nil
	}

	rewritten := strings.TrimSpace(response.Content)

	log.Info().
		Str("original", originalQuestion).
		Str("rewritten", rewritten).
		Msg("Question rewrite")

	return rewritten, nil
}
