package answer

import (
	"errors"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/assemble"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/conversation"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/middleware"
)

// Route labels the evidence path that produced an answer. It is derived
// from the path actually taken and recorded for telemetry; it never drives
// control flow.
type Route string

const (
	RouteKBOnly      Route = "KB_ONLY"
	RouteKBEmpty     Route = "KB_EMPTY"
	RouteWebFallback Route = "WEB_FALLBACK"
	RouteGuidance    Route = "GUIDANCE"
	RouteOutOfDomain Route = "OUT_OF_DOMAIN"
)

// ErrDimensionMismatch signals a corpus/provider version skew: the query
// embedding's dimensionality disagrees with the loaded corpus.
var ErrDimensionMismatch = errors.New("query embedding dimension does not match corpus dimension")

// SpecializationNotice is the fixed terminal message for out-of-domain
// questions.
const SpecializationNotice = "Lo siento, solo puedo ayudarte con trámites y normativa de extranjería e inmigración en España. Para otras jurisdicciones te recomiendo consultar con un profesional especializado."

// GuidanceMessage is emitted when no grounding evidence exists; the model
// is never allowed to improvise without sources.
const GuidanceMessage = "No he encontrado información suficiente en mis fuentes para responder con garantías. Te recomiendo consultar la sede electrónica de extranjería (sede.administracionespublicas.gob.es) o pedir cita en tu oficina de extranjería."

type AskRequest struct {
	Question            string              `json:"question" description:"The legal question to answer"`
	TopK                int                 `json:"topK,omitempty" description:"Maximum ranked hits to retrieve (default: 8)"`
	MinScore            float64             `json:"minScore,omitempty" description:"Minimum similarity score 0.0-1.0 (default: 0.35)"`
	KbOnly              bool                `json:"kbOnly,omitempty" description:"Disable the web fallback"`
	ConversationHistory []conversation.Turn `json:"conversationHistory,omitempty" description:"Recent turns of this session, oldest first"`
}

type AskResponse struct {
	OK        bool                   `json:"ok"`
	Question  string                 `json:"question"`
	Answer    string                 `json:"answer"`
	Citations []assemble.EnrichedHit `json:"citations"`
	Route     Route                  `json:"route"`
	TopScore  float64                `json:"topScore"`
	RequestID string                 `json:"requestId"`
	RuntimeMs int64                  `json:"runtimeMs"`
}

type HealthResponse struct {
	Status  string `json:"status" description:"Service status"`
	Version string `json:"version" description:"API version"`
}

func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return middleware.ErrEmptyQuestion
	}
	if r.TopK < 0 || r.TopK > 50 {
		return middleware.ErrInvalidTopK
	}
	if r.MinScore < 0.0 || r.MinScore > 1.0 {
		return middleware.ErrInvalidMinScore
	}
	return nil
}

// Defaults are the server-configured retrieval knobs applied to requests
// that leave them unset.
type Defaults struct {
	TopK     int
	MinScore float64
}

func (d Defaults) normalized() Defaults {
	if d.TopK <= 0 {
		d.TopK = 8
	}
	if d.MinScore <= 0 {
		d.MinScore = 0.35
	}
	return d
}

func (r *AskRequest) SetDefaults(d Defaults) {
	d = d.normalized()
	if r.TopK == 0 {
		r.TopK = d.TopK
	}
	if r.MinScore == 0 {
		r.MinScore = d.MinScore
	}
}
