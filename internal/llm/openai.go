package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is the alternate chat provider, selected with
// LLM_PROVIDER=openai.
type OpenAIClient struct {
	client  *openai.Client
	modelID string
}

func NewOpenAIClient(apiKey, modelID string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if modelID == "" {
		return nil, fmt.Errorf("OpenAI model ID is required")
	}

	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		modelID: modelID,
	}, nil
}

func (c *OpenAIClient) Invoke(ctx context.Context, request Request) (*Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.modelID,
		MaxTokens:   request.MaxTokens,
		Temperature: float32(request.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: request.Prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion returned no choices")
	}

	return &Response{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func (c *OpenAIClient) InvokeStream(ctx context.Context, request Request, callback StreamCallback) (*Response, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.modelID,
		MaxTokens:   request.MaxTokens,
		Temperature: float32(request.Temperature),
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: request.Prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion stream: %w", err)
	}
	defer stream.Close()

	var content string
	var stopReason string

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("openai stream recv: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			content += delta
			if callback != nil {
				if err := callback(delta); err != nil {
					return nil, fmt.Errorf("callback error: %w", err)
				}
			}
		}
		if chunk.Choices[0].FinishReason != "" {
			stopReason = string(chunk.Choices[0].FinishReason)
		}
	}

	return &Response{
		Content:    content,
		StopReason: stopReason,
	}, nil
}
