// Package mcpadapter exposes the answer pipeline as MCP tools so agent
// hosts can call it over stdio without the HTTP surface.
package mcpadapter

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/answer"
)

// AnswerInput is the MCP tool input schema (matches the HTTP API field names).
type AnswerInput struct {
	Question string  `json:"question" jsonschema:"the legal question to answer"`
	TopK     int     `json:"topK,omitempty" jsonschema:"maximum ranked hits to retrieve"`
	MinScore float64 `json:"minScore,omitempty" jsonschema:"minimum similarity score (0.0-1.0)"`
	KbOnly   bool    `json:"kbOnly,omitempty" jsonschema:"disable the live web fallback"`
}

// NewAnswerHandler returns a tool handler over the answer service.
// Pass the returned function to mcp.AddTool.
func NewAnswerHandler(service *answer.Service, defaults answer.Defaults) func(context.Context, *mcp.CallToolRequest, AnswerInput) (*mcp.CallToolResult, answer.AskResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AnswerInput) (*mcp.CallToolResult, answer.AskResponse, error) {
		return Answer(ctx, service, defaults, req, input)
	}
}

// Answer runs the full retrieval and generation pipeline and returns the
// single-shot response.
func Answer(
	ctx context.Context,
	service *answer.Service,
	defaults answer.Defaults,
	req *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, answer.AskResponse, error) {
	askRequest := answer.AskRequest{
		Question: input.Question,
		TopK:     input.TopK,
		MinScore: input.MinScore,
		KbOnly:   input.KbOnly,
	}
	askRequest.SetDefaults(defaults)
	if err := askRequest.Validate(); err != nil {
		return nil, answer.AskResponse{}, err
	}

	result, err := service.Answer(ctx, askRequest)
	return nil, result, err
}
