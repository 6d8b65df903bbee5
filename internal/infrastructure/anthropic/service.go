package anthropic

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/pkg/logger"
)

type Service struct {
	mu     sync.RWMutex
	client *anthropic.Client
	model  string
}

// NewService returns nil when ANTHROPIC_API_KEY is not set.
func NewService() *Service {
	logger.Info(logger.SERVICE, "Initialising Anthropic service")
	key := config.GetAnthropicKey()

	if key == "" {
		logger.Warn(logger.SERVICE, "Anthropic service not configured - ANTHROPIC_API_KEY missing")
		return nil
	}

	return NewServiceWithOptions(config.GetAnthropicModel(), option.WithAPIKey(key))
}

func NewServiceWithOptions(model string, opts ...option.RequestOption) *Service {
	client := anthropic.NewClient(opts...)
	return &Service{
		client: &client,
		model:  model,
	}
}

func (s *Service) GetClient() *anthropic.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Service) Model() string {
	return s.model
}
