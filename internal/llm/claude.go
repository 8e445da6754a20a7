package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var anthropicVersion = "bedrock-2023-05-31"

// ClaudeClient is the Bedrock-backed chat provider.
type ClaudeClient struct {
	client  *bedrockruntime.Client
	modelID string
}

func NewClaudeClient(ctx context.Context, region, modelID string) (*ClaudeClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &ClaudeClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// Claude API request format (what Bedrock expects)
type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *ClaudeClient) Invoke(ctx context.Context, request Request) (*Response, error) {
	body, err := json.Marshal(c.payload(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke model: %w", err)
	}

	var response claudeMessageResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bedrock response: %w", err)
	}

	var content string
	if len(response.Content) > 0 {
		content = response.Content[0].Text
	}

	return &Response{
		Content:    content,
		StopReason: response.StopReason,
	}, nil
}

func (c *ClaudeClient) InvokeStream(ctx context.Context, request Request, callback StreamCallback) (*Response, error) {
	body, err := json.Marshal(c.payload(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := c.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     &c.modelID,
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke model stream: %w", err)
	}

	stream := output.GetStream()
	defer stream.Close()

	var fullContent strings.Builder
	var stopReason string

	for event := range stream.Events() {
		switch v := event.(type) {
		case *types.ResponseStreamMemberChunk:
			var chunkResponse struct {
				Delta struct {
					Text string `json:"text"`
				} `json:"delta"`
				ContentBlock struct {
					Text string `json:"text"`
				} `json:"content_block"`
				Message struct {
					StopReason string `json:"stop_reason"`
				} `json:"message"`
			}

			if err := json.Unmarshal(v.Value.Bytes, &chunkResponse); err != nil {
				// Skip chunks we can't parse
				continue
			}

			if chunkResponse.Delta.Text != "" {
				fullContent.WriteString(chunkResponse.Delta.Text)
				if callback != nil {
					if err := callback(chunkResponse.Delta.Text); err != nil {
						return nil, fmt.Errorf("callback error: %w", err)
					}
				}
			}

			if chunkResponse.ContentBlock.Text != "" {
				fullContent.WriteString(chunkResponse.ContentBlock.Text)
				if callback != nil {
					if err := callback(chunkResponse.ContentBlock.Text); err != nil {
						return nil, fmt.Errorf("callback error: %w", err)
					}
				}
			}

			if chunkResponse.Message.StopReason != "" {
				stopReason = chunkResponse.Message.StopReason
			}

		default:
			continue
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream error: %w", err)
	}

	return &Response{
		Content:    fullContent.String(),
		StopReason: stopReason,
	}, nil
}

func (c *ClaudeClient) payload(request Request) claudeMessageRequest {
	return claudeMessageRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        request.MaxTokens,
		Temperature:      request.Temperature,
		Messages: []claudeMessage{
			{
				Role:    "user",
				Content: request.Prompt,
			},
		},
	}
}
