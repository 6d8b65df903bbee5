package conversation

import "github.com/caia/concierge/pkg/protocol"

type PaymentStatus string

const (
	StatusIdle                  PaymentStatus = "IDLE"
	StatusAwaitingCardSelection PaymentStatus = "AWAITING_CARD_SELECTION"
	StatusAwaitingNewCard       PaymentStatus = "AWAITING_NEW_CARD"
	StatusProcessing            PaymentStatus = "PROCESSING"
	StatusDone                  PaymentStatus = "DONE"
)

// AcceptsFreeText reports whether typed user input may be dispatched.
func (s PaymentStatus) AcceptsFreeText() bool {
	switch s {
	case StatusAwaitingCardSelection, StatusAwaitingNewCard, StatusProcessing:
		return false
	default:
		return true
	}
}

// transitionFor applies regardless of the current status.
func transitionFor(t protocol.MessageType) (PaymentStatus, bool) {
	switch t {
	case protocol.TypeShowSavedCards:
		return StatusAwaitingCardSelection, true
	case protocol.TypeNeedNewCard:
		return StatusAwaitingNewCard, true
	case protocol.TypePaymentProcessing:
		return StatusProcessing, true
	case protocol.TypePaymentResult:
		return StatusDone, true
	default:
		return "", false
	}
}
