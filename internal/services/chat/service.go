// Package chat implements the participants' text generators on top of the
// OpenAI and Anthropic APIs.
package chat

import (
	"fmt"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/infrastructure/anthropic"
	"github.com/caia/concierge/internal/infrastructure/openai"
	"github.com/caia/concierge/internal/services/catalog"
	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/pkg/logger"
	"github.com/caia/concierge/pkg/protocol"
)

// NewGenerators builds one generator per participant on the configured
// provider. Exactly one of the services is used; a nil service for the chosen
// provider is an error.
func NewGenerators(provider string, oa *openai.Service, an *anthropic.Service, cat *catalog.Catalog) (map[protocol.Participant]dispatch.Generator, error) {
	instructions := map[protocol.Participant]Instructions{
		protocol.Shopping: ShoppingInstructions(cat),
		protocol.Payment:  PaymentInstructions(),
	}
	temperature := config.GetLLMTemperature()

	gens := make(map[protocol.Participant]dispatch.Generator, len(instructions))
	switch provider {
	case config.ProviderAnthropic:
		if an == nil {
			return nil, fmt.Errorf("LLM_PROVIDER=%s but ANTHROPIC_API_KEY is not set", provider)
		}
		for p, ins := range instructions {
			gens[p] = NewAnthropicGenerator(an.GetClient(), ins, GeneratorConfig{Model: an.Model(), Temperature: temperature})
		}
	case config.ProviderOpenAI:
		if oa == nil {
			return nil, fmt.Errorf("LLM_PROVIDER=%s but OPENAI_KEY is not set", provider)
		}
		for p, ins := range instructions {
			gens[p] = NewOpenAIGenerator(oa.GetClient(), ins, GeneratorConfig{Model: oa.Model(), Temperature: temperature})
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}

	logger.Info(logger.CHAT, "Configured %s generators for %d participants", provider, len(gens))
	return gens, nil
}
