package openai

import (
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/pkg/logger"
)

type Service struct {
	mu     sync.RWMutex
	client *openai.Client
	model  string
}

// NewService returns nil when OPENAI_KEY is not set.
func NewService() *Service {
	logger.Info(logger.SERVICE, "Initialising OpenAI service")
	key := config.GetOpenAIKey()

	if key == "" {
		logger.Warn(logger.SERVICE, "OpenAI service not configured - OPENAI_KEY missing")
		return nil
	}

	return NewServiceWithConfig(openai.DefaultConfig(key), config.GetOpenAIModel())
}

// NewServiceWithConfig builds a service against an explicit client config,
// e.g. a different base URL.
func NewServiceWithConfig(cfg openai.ClientConfig, model string) *Service {
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *Service) GetClient() *openai.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Service) Model() string {
	return s.model
}
