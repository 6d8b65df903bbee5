package config

import (
	"time"

	"github.com/caia/concierge/pkg/logger"
)

type RateLimitConfig struct {
	Enabled bool
	MaxHits int
	Window  time.Duration
}

func GetRateLimitConfig(key string) RateLimitConfig {
	enabled := GetEnvOrDefault("RATELIMIT_ENABLED", "false") == "true"

	configs := map[string]RateLimitConfig{
		"global": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_GLOBAL", 1000), // 1000 requests per minute globally
			Window:  time.Minute,
		},
		"session_create": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_SESSION_CREATE", 30), // 30 sessions per minute
			Window:  time.Minute,
		},
		"chat_turn": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_CHAT_TURN", 120), // 120 turns per minute
			Window:  time.Minute,
		},
	}

	if config, exists := configs[key]; exists {
		return config
	}

	logger.Warn(logger.CONFIG, "No rate limit config found for key: %s", key)
	return RateLimitConfig{Enabled: false}
}
