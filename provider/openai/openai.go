package openai_provider

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quanghia/lectura/config"
	"github.com/quanghia/lectura/internal/conversation"
)

const systemPrompt = `You are a helpful course assistant for an online learning platform.
Answer questions about lesson content clearly and concisely. When you do
not know an answer, say so instead of inventing one.`

// client implements the responder interface against OpenAI's chat API.
type client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a new OpenAI-backed responder.
func NewClient(cfg config.ResponderConfig) *client {
	occ := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		occ.BaseURL = cfg.BaseURL
	}
	occ.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &client{
		api:         openai.NewClientWithConfig(occ),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *client) Model() string { return c.model }

// Reply sends the new message plus prior exchange pairs and returns the
// assistant reply. No retry: a failed call surfaces to the caller.
func (c *client) Reply(ctx context.Context, message string, history []conversation.Pair) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2*len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, p := range history {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.Prompt},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: p.Reply},
		)
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
