package services

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/connections"
	"github.com/caia/concierge/internal/infrastructure/anthropic"
	"github.com/caia/concierge/internal/infrastructure/openai"
	"github.com/caia/concierge/internal/infrastructure/redis"
	"github.com/caia/concierge/internal/services/catalog"
	"github.com/caia/concierge/internal/services/chat"
	"github.com/caia/concierge/internal/services/conversation"
	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/internal/services/events"
	"github.com/caia/concierge/internal/services/session"
	"github.com/caia/concierge/pkg/protocol"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	redisService      *redis.Service
	broker            events.Broker
	catalog           *catalog.Catalog
	dispatcher        *dispatch.Dispatcher
	conversations     *conversation.Manager
	sessionService    *session.Service
	connectionManager *connections.Manager
}

// Dependencies are the pieces InitializeServices derives from the
// environment. Tests build Services from them directly.
type Dependencies struct {
	Redis        *redis.Service
	Catalog      *catalog.Catalog
	Generators   map[protocol.Participant]dispatch.Generator
	Conversation config.ConversationConfig
	// Clock drives conversation timers; the real clock when nil.
	Clock clock.WithDelayedExecution
}

// InitializeServices initializes all required services
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Initialize Redis service (optional)
	redisService := redis.NewService()
	log.Info().Bool("enabled", redisService != nil).Msg("Initializing Redis service")

	cat, err := catalog.Load(config.GetCatalogPath())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load catalog")
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Info().Int("products", len(cat.Products)).Int("customers", len(cat.Customers)).Msg("Loaded catalog")

	provider := config.GetLLMProvider()
	var (
		openAIService    *openai.Service
		anthropicService *anthropic.Service
	)
	switch provider {
	case config.ProviderAnthropic:
		anthropicService = anthropic.NewService()
	default:
		openAIService = openai.NewService()
	}

	generators, err := chat.NewGenerators(provider, openAIService, anthropicService, cat)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("Failed to initialize generators - required for conversations")
		return nil, fmt.Errorf("failed to initialize generators: %w", err)
	}

	svc := Build(Dependencies{
		Redis:        redisService,
		Catalog:      cat,
		Generators:   generators,
		Conversation: config.GetConversationConfig(),
	})

	log.Info().Msg("All services initialized successfully")
	return svc, nil
}

// Build wires the conversation stack from already constructed dependencies.
func Build(deps Dependencies) *Services {
	conv := deps.Conversation

	dispatcher := dispatch.New(deps.Generators, deps.Catalog, func(c *dispatch.Config) {
		c.Timeout = conv.DispatchTimeout
		c.Normalizer = protocol.Normalizer{TextLimit: conv.FallbackTextLimit}
	})

	broker := events.NewBroker(deps.Redis)

	conversations := conversation.NewManager(dispatcher, broker, deps.Catalog, conversation.Config{
		CustomerID: conv.DefaultCustomerID,
		Timings: conversation.Timings{
			HandoffDelay:      conv.HandoffDelay,
			ResultDelay:       conv.PaymentResultDelay,
			IdleDelay:         conv.PaymentIdleDelay,
			ConfirmationDelay: conv.OrderConfirmationDelay,
		},
		RevealInterval:  conv.RevealInterval,
		RevealIncrement: conv.RevealIncrement,
		Clock:           deps.Clock,
	})

	return &Services{
		redisService:      deps.Redis,
		broker:            broker,
		catalog:           deps.Catalog,
		dispatcher:        dispatcher,
		conversations:     conversations,
		sessionService:    session.NewService(deps.Redis),
		connectionManager: connections.NewManager(connections.DefaultTimeouts),
	}
}

// Close ends every live session and releases the broker and Redis.
func (s *Services) Close() {
	s.conversations.CloseAll()
	if err := s.broker.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close event broker")
	}
	if s.redisService != nil {
		if err := s.redisService.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
}

func (s *Services) GetCatalog() *catalog.Catalog {
	return s.catalog
}

func (s *Services) GetBroker() events.Broker {
	return s.broker
}

// GetConversations returns the live session manager
func (s *Services) GetConversations() *conversation.Manager {
	return s.conversations
}

// GetSessionService returns the session token service
func (s *Services) GetSessionService() *session.Service {
	return s.sessionService
}

func (s *Services) GetConnectionManager() *connections.Manager {
	return s.connectionManager
}
