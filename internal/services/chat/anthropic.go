package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/caia/concierge/pkg/logger"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicGenerator answers a turn with one Messages API call.
type AnthropicGenerator struct {
	client       *anthropic.Client
	instructions Instructions
	config       GeneratorConfig
}

func NewAnthropicGenerator(client *anthropic.Client, instructions Instructions, cfg GeneratorConfig) *AnthropicGenerator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicGenerator{client: client, instructions: instructions, config: cfg}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, transcript string, userText string) (string, error) {
	logger.Debug(logger.CHAT, "Requesting Anthropic message (%d transcript bytes)", len(transcript))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.config.Model),
		MaxTokens:   int64(g.config.MaxTokens),
		Temperature: anthropic.Float(g.config.Temperature),
		System:      []anthropic.TextBlockParam{{Text: g.instructions(g.config.now())}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(conversationFor(transcript, userText))),
		},
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error(logger.CHAT, "Anthropic request failed: %v", err)
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}
	return b.String(), nil
}
