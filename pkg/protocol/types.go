// Package protocol defines the structured messages exchanged between the
// language-model participants and the UI, and the normalizer that turns
// free-form model output into them.
package protocol

import (
	"encoding/json"
	"strings"
)

// Participant identifies one of the two conversational agents.
type Participant string

const (
	Shopping Participant = "shopping"
	Payment  Participant = "payment"
)

// ParseParticipant maps a wire agent name onto a participant. The legacy name
// "cashfree" refers to the payment participant; anything unrecognised is
// attributed to shopping.
func ParseParticipant(agent string) Participant {
	switch strings.ToLower(strings.TrimSpace(agent)) {
	case "payment", "cashfree":
		return Payment
	default:
		return Shopping
	}
}

func (p Participant) Valid() bool {
	return p == Shopping || p == Payment
}

type MessageType string

const (
	TypeMessage             MessageType = "MESSAGE"
	TypeProductList         MessageType = "PRODUCT_LIST"
	TypeProductConfirmation MessageType = "PRODUCT_CONFIRMATION"
	TypeSizeSelection       MessageType = "SIZE_SELECTION"
	TypeAddressSelection    MessageType = "ADDRESS_SELECTION"
	TypeHandoff             MessageType = "HANDOFF"
	TypePaymentRequest      MessageType = "PAYMENT_REQUEST"
	TypeShowSavedCards      MessageType = "PAYMENT_SHOW_SAVED_CARDS"
	TypeNeedNewCard         MessageType = "PAYMENT_NEED_NEW_CARD"
	TypePaymentProcessing   MessageType = "PAYMENT_PROCESSING"
	TypePaymentResult       MessageType = "PAYMENT_RESULT"
	TypeOrderConfirmation   MessageType = "ORDER_CONFIRMATION"
	TypeError               MessageType = "ERROR"
)

var knownTypes = map[MessageType]struct{}{
	TypeMessage: {}, TypeProductList: {}, TypeProductConfirmation: {},
	TypeSizeSelection: {}, TypeAddressSelection: {}, TypeHandoff: {},
	TypePaymentRequest: {}, TypeShowSavedCards: {}, TypeNeedNewCard: {},
	TypePaymentProcessing: {}, TypePaymentResult: {}, TypeOrderConfirmation: {},
	TypeError: {},
}

// Known reports whether t is one of the protocol's tags. Unknown tags are
// carried through untouched and rendered as plain text by clients.
func (t MessageType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// StructuredMessage is the unit of output produced by a participant.
type StructuredMessage struct {
	Agent string         `json:"agent"`
	Type  MessageType    `json:"type"`
	Text  string         `json:"text"`
	Data  map[string]any `json:"data"`
}

// NewMessage builds a message authored by p. A nil data map is replaced by an
// empty one.
func NewMessage(p Participant, typ MessageType, text string, data map[string]any) StructuredMessage {
	if data == nil {
		data = map[string]any{}
	}
	return StructuredMessage{Agent: string(p), Type: typ, Text: text, Data: data}
}

// Participant returns the participant that authored the message.
func (m StructuredMessage) Participant() Participant {
	return ParseParticipant(m.Agent)
}

// JSON renders the message as a single-line JSON object, the form in which
// messages are recorded in a transcript.
func (m StructuredMessage) JSON() string {
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		// Data came from a JSON decode or from typed payloads; a failure here
		// means a non-encodable value was injected by a caller.
		b, _ = json.Marshal(StructuredMessage{Agent: m.Agent, Type: m.Type, Text: m.Text, Data: map[string]any{}})
	}
	return string(b)
}
