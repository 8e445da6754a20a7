package answer

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/emicklei/go-restful/v3"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/corpus"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/middleware"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/stream"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	service  *Service
	defaults Defaults
}

func NewHandler(service *Service, defaults Defaults) *Handler {
	return &Handler{service: service, defaults: defaults.normalized()}
}

// Ask handles POST /api/v1/answer
func (h *Handler) Ask(req *restful.Request, resp *restful.Response) {
	var askRequest AskRequest

	if err := req.ReadEntity(&askRequest); err != nil {
		log.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	askRequest.SetDefaults(h.defaults)
	if err := askRequest.Validate(); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	log.Info().
		Str("question", askRequest.Question).
		Int("top_k", askRequest.TopK).
		Float64("min_score", askRequest.MinScore).
		Bool("kb_only", askRequest.KbOnly).
		Msg("Process question")

	ctx := req.Request.Context()

	answerResponse, err := h.service.Answer(ctx, askRequest)
	if err != nil {
		middleware.HandleError(resp, err, statusFor(err))
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, answerResponse)
}

// AskStream handles POST /api/v1/answer/stream
func (h *Handler) AskStream(req *restful.Request, resp *restful.Response) {
	var askRequest AskRequest

	if err := req.ReadEntity(&askRequest); err != nil {
		log.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	askRequest.SetDefaults(h.defaults)
	if err := askRequest.Validate(); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	log.Info().
		Str("question", askRequest.Question).
		Bool("kb_only", askRequest.KbOnly).
		Msg("Process question stream")

	ctx := req.Request.Context()

	// Gate, retrieval and assembly all run before the first byte so the
	// route metadata can travel as headers.
	prepared, err := h.service.Prepare(ctx, askRequest)
	if err != nil {
		middleware.HandleError(resp, err, statusFor(err))
		return
	}

	resp.AddHeader("Content-Type", "application/x-ndjson")
	resp.AddHeader("Cache-Control", "no-cache")
	resp.AddHeader("X-Accel-Buffering", "no")
	resp.AddHeader("X-Request-Id", prepared.RequestID)
	resp.AddHeader("X-Route", string(prepared.Route))
	resp.AddHeader("X-Top-Score", strconv.FormatFloat(prepared.TopScore, 'f', 4, 64))
	resp.AddHeader("X-Domain-Admitted", strconv.FormatBool(prepared.Admitted))

	writer := resp.ResponseWriter
	flusher, ok := writer.(http.Flusher)
	if !ok {
		middleware.HandleError(resp, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}
	resp.WriteHeader(http.StatusOK)

	emitter := stream.NewNDJSONEmitter(ctx, writer, flusher)
	h.service.Deliver(ctx, askRequest, prepared, emitter)
}

// Health handles GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, corpus.ErrCorpusUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrDimensionMismatch):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
