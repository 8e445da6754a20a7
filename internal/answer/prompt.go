package answer

import (
	"fmt"
	"strings"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/assemble"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/conversation"
)

// buildPrompt composes the grounded prompt: fixed instruction preamble,
// the bounded recent history, and the assembled context blocks. Streaming
// and single-shot generation share this construction.
func buildPrompt(question string, citations []assemble.EnrichedHit, history []conversation.Turn, maxTurns int) string {
	historySection := ""
	if len(history) > 0 {
		var hb strings.Builder
		hb.WriteString("Historial de conversación:\n")
		for _, turn := range conversation.Cap(history, maxTurns) {
			hb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		historySection = hb.String() + "\n"
	}

	contextSection := ""
	if len(citations) > 0 {
		var cb strings.Builder
		cb.WriteString("Fuentes relevantes:\n<contexto>\n")
		for i, c := range citations {
			if c.Web {
				cb.WriteString(fmt.Sprintf("[%d] (web: %s)\n%s\n\n", i+1, c.SourceLocator, c.Excerpt))
			} else {
				cb.WriteString(fmt.Sprintf("[%d] (relevancia: %.2f, fuente: %s)\n%s\n\n", i+1, c.Score, c.SourceLocator, c.Excerpt))
			}
		}
		cb.WriteString("</contexto>\n")
		contextSection = cb.String() + "\n"
	}

	return fmt.Sprintf(`Eres un asistente jurídico especializado en extranjería e inmigración en España. Responde únicamente a partir de las fuentes proporcionadas y cita el número de fuente cuando corresponda. Si las fuentes no cubren algún punto, dilo explícitamente.

%s%sPregunta actual: %s

Proporciona una respuesta clara y precisa basada en la información proporcionada.`,
		historySection, contextSection, question)
}
