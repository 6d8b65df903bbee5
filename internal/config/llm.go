package config

import (
	"strings"

	"github.com/caia/concierge/pkg/logger"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// GetLLMProvider selects the text generation backend.
func GetLLMProvider() string {
	value := strings.ToLower(GetEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))
	switch value {
	case ProviderOpenAI, ProviderAnthropic:
		return value
	default:
		logger.Warn(logger.CONFIG, "Unknown LLM_PROVIDER %q, using %s", value, ProviderOpenAI)
		return ProviderOpenAI
	}
}

// GetOpenAIKey returns the configured OpenAI key, or "" when unset.
func GetOpenAIKey() string {
	return GetEnvOrDefault("OPENAI_KEY", "")
}

func GetOpenAIModel() string {
	return GetEnvOrDefault("OPENAI_MODEL", "gpt-4o")
}

func GetAnthropicKey() string {
	return GetEnvOrDefault("ANTHROPIC_API_KEY", "")
}

func GetAnthropicModel() string {
	return GetEnvOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-5")
}

// GetLLMTemperature matches the sampling temperature both participants use.
func GetLLMTemperature() float64 {
	return parseEnvFloat("LLM_TEMPERATURE", 0.5)
}
