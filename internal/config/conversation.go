package config

import "time"

// ConversationConfig groups the timing and sizing knobs of a chat session.
type ConversationConfig struct {
	DefaultCustomerID      string
	RevealInterval         time.Duration
	RevealIncrement        int
	HandoffDelay           time.Duration
	PaymentResultDelay     time.Duration
	PaymentIdleDelay       time.Duration
	OrderConfirmationDelay time.Duration
	DispatchTimeout        time.Duration
	FallbackTextLimit      int
}

func GetConversationConfig() ConversationConfig {
	return ConversationConfig{
		DefaultCustomerID:      GetEnvOrDefault("DEFAULT_CUSTOMER_ID", "demo_with_cards"),
		RevealInterval:         parseEnvDuration("REVEAL_INTERVAL", 20*time.Millisecond),
		RevealIncrement:        parseEnvInt("REVEAL_INCREMENT", 1),
		HandoffDelay:           parseEnvDuration("HANDOFF_DELAY", 120*time.Millisecond),
		PaymentResultDelay:     parseEnvDuration("PAYMENT_RESULT_DELAY", 2*time.Second),
		PaymentIdleDelay:       parseEnvDuration("PAYMENT_IDLE_DELAY", 500*time.Millisecond),
		OrderConfirmationDelay: parseEnvDuration("ORDER_CONFIRMATION_DELAY", 1200*time.Millisecond),
		DispatchTimeout:        parseEnvDuration("DISPATCH_TIMEOUT", 60*time.Second),
		FallbackTextLimit:      parseEnvInt("FALLBACK_TEXT_LIMIT", 1500),
	}
}
