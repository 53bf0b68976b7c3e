package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

const maxTokens = 2048

// Client binds the three provider ports (vision, generation, embeddings) to
// the OpenAI API. Provider failures are translated into taxonomy errors by
// HTTP status, never by matching on message text.
type Client struct {
	*openai.Client
	VisionModel     string
	GenerationModel string
	EmbeddingModel  string
}

func NewClient(apiKey, visionModel, generationModel, embeddingModel string) *Client {
	return &Client{
		Client:          openai.NewClient(apiKey),
		VisionModel:     visionModel,
		GenerationModel: generationModel,
		EmbeddingModel:  embeddingModel,
	}
}

// Classify sends the image as an inline data URI with the inspection prompt
// and parses the model's JSON reply into a vision result.
func (c *Client) Classify(ctx context.Context, image []byte, mimeType, prompt string) (*assessment.VisionResult, error) {
	model := c.VisionModel
	if model == "" {
		model = openai.GPT4o
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens: maxTokens,
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapErr(err, "vision classification")
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	content := resp.Choices[0].Message.Content
	var vr assessment.VisionResult
	if err := json.Unmarshal([]byte(content), &vr); err != nil || strings.TrimSpace(vr.Description) == "" {
		// Model ignored the JSON contract; use the raw text and let the
		// pipeline apply its default confidence.
		return &assessment.VisionResult{Description: strings.TrimSpace(content)}, nil
	}
	return &vr, nil
}

// Generate runs a plain chat completion over the pipeline's messages.
func (c *Client) Generate(ctx context.Context, messages []assessment.Message) (string, error) {
	model := c.GenerationModel
	if model == "" {
		model = openai.GPT4oMini
	}

	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapErr(err, "text generation")
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed turns query or document text into a vector for the knowledge index.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	model := c.EmbeddingModel
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, mapErr(err, "embedding")
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding model returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// mapErr classifies provider failures by their HTTP status code.
func mapErr(err error, op string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return assessment.RateLimited(op + " rejected by provider rate limit")
		case apiErr.HTTPStatusCode == 413:
			return assessment.InsufficientResources(op + " payload exceeds provider limits")
		case apiErr.HTTPStatusCode >= 500:
			return assessment.Unavailable(op + " provider error")
		}
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
