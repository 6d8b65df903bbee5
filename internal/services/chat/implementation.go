package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/caia/concierge/pkg/logger"
)

// GeneratorConfig holds the sampling settings shared by both backends.
type GeneratorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Now is the clock used to render the system prompt.
	Now func() time.Time
}

func (c GeneratorConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// OpenAIGenerator answers a turn with one chat completion.
type OpenAIGenerator struct {
	client       *openai.Client
	instructions Instructions
	config       GeneratorConfig
}

func NewOpenAIGenerator(client *openai.Client, instructions Instructions, cfg GeneratorConfig) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, instructions: instructions, config: cfg}
}

// Generate sends the transcript, which already ends with the user's turn, as
// a single user message after the system prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, transcript string, userText string) (string, error) {
	logger.Debug(logger.CHAT, "Requesting OpenAI completion (%d transcript bytes)", len(transcript))

	req := openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.instructions(g.config.now())},
			{Role: openai.ChatMessageRoleUser, Content: conversationFor(transcript, userText)},
		},
		Temperature: float32(g.config.Temperature),
		MaxTokens:   g.config.MaxTokens,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Error(logger.CHAT, "Failed to get chat completion: %v", err)
		return "", fmt.Errorf("failed to get chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func conversationFor(transcript, userText string) string {
	if transcript == "" {
		return "User: " + userText
	}
	return transcript
}
