package protocol

import (
	"encoding/json"
	"fmt"
)

// Card is a saved or newly entered payment card. Only the last four digits of
// the number are ever carried.
type Card struct {
	ID         string `json:"id" yaml:"id"`
	Brand      string `json:"brand" yaml:"brand"`
	Last4      string `json:"last4" yaml:"last4"`
	ExpMonth   int    `json:"expMonth" yaml:"expMonth"`
	ExpYear    int    `json:"expYear" yaml:"expYear"`
	NameOnCard string `json:"nameOnCard" yaml:"nameOnCard"`
	Network    string `json:"network,omitempty" yaml:"network,omitempty"`
}

type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Price       float64  `json:"price" yaml:"price"`
	Currency    string   `json:"currency" yaml:"currency"`
	Image       string   `json:"image,omitempty" yaml:"image,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Sizes       []string `json:"sizes,omitempty" yaml:"sizes,omitempty"`
}

type Address struct {
	ID         string `json:"id" yaml:"id"`
	Label      string `json:"label" yaml:"label"`
	Line1      string `json:"line1" yaml:"line1"`
	Line2      string `json:"line2,omitempty" yaml:"line2,omitempty"`
	City       string `json:"city" yaml:"city"`
	State      string `json:"state,omitempty" yaml:"state,omitempty"`
	PostalCode string `json:"postalCode" yaml:"postalCode"`
	Country    string `json:"country" yaml:"country"`
	IsDefault  bool   `json:"isDefault,omitempty" yaml:"isDefault,omitempty"`
}

// Payload is the typed form of a message's data, one variant per message type.
type Payload interface {
	MessageType() MessageType
}

type ProductListPayload struct {
	Products []Product `json:"products"`
}

type ProductConfirmationPayload struct {
	ProductID    string  `json:"productId"`
	ProductTitle string  `json:"productTitle"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Size         string  `json:"size,omitempty"`
}

type SizeSelectionPayload struct {
	ProductID string   `json:"productId"`
	Sizes     []string `json:"sizes"`
}

type AddressSelectionPayload struct {
	Addresses  []Address `json:"addresses"`
	SelectedID string    `json:"selectedId,omitempty"`
}

// HandoffPayload is the order summary shopping passes to payment.
type HandoffPayload struct {
	OrderID      string  `json:"orderId"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ProductID    string  `json:"productId"`
	ProductTitle string  `json:"productTitle"`
	CustomerID   string  `json:"customerId"`
	AddressID    string  `json:"addressId"`
	Quantity     int     `json:"quantity"`
	Size         string  `json:"size,omitempty"`
}

type PaymentRequestPayload struct {
	OrderID    string  `json:"orderId"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	CustomerID string  `json:"customerId,omitempty"`
}

type SavedCardsPayload struct {
	OrderID  string  `json:"orderId,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Cards    []Card  `json:"cards"`
}

type NeedNewCardPayload struct {
	OrderID  string  `json:"orderId,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

type PaymentProcessingPayload struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Card     *Card   `json:"card,omitempty"`
}

type PaymentResultPayload struct {
	OrderID  string  `json:"orderId"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Card     *Card   `json:"card,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type OrderConfirmationPayload struct {
	OrderID           string `json:"orderId"`
	EstimatedDelivery string `json:"estimatedDelivery"`
}

// RawPayload carries data for MESSAGE, ERROR and unrecognised types.
type RawPayload struct {
	Type   MessageType
	Fields map[string]any
}

func (ProductListPayload) MessageType() MessageType         { return TypeProductList }
func (ProductConfirmationPayload) MessageType() MessageType { return TypeProductConfirmation }
func (SizeSelectionPayload) MessageType() MessageType       { return TypeSizeSelection }
func (AddressSelectionPayload) MessageType() MessageType    { return TypeAddressSelection }
func (HandoffPayload) MessageType() MessageType             { return TypeHandoff }
func (PaymentRequestPayload) MessageType() MessageType      { return TypePaymentRequest }
func (SavedCardsPayload) MessageType() MessageType          { return TypeShowSavedCards }
func (NeedNewCardPayload) MessageType() MessageType         { return TypeNeedNewCard }
func (PaymentProcessingPayload) MessageType() MessageType   { return TypePaymentProcessing }
func (PaymentResultPayload) MessageType() MessageType       { return TypePaymentResult }
func (OrderConfirmationPayload) MessageType() MessageType   { return TypeOrderConfirmation }
func (p RawPayload) MessageType() MessageType               { return p.Type }

// DecodePayload converts a message's open data map into its typed variant.
// Data that does not fit the variant's field types yields an error; callers
// can still fall back to m.Data.
func DecodePayload(m StructuredMessage) (Payload, error) {
	switch m.Type {
	case TypeProductList:
		return decodeInto[ProductListPayload](m.Data)
	case TypeProductConfirmation:
		return decodeInto[ProductConfirmationPayload](m.Data)
	case TypeSizeSelection:
		return decodeInto[SizeSelectionPayload](m.Data)
	case TypeAddressSelection:
		return decodeInto[AddressSelectionPayload](m.Data)
	case TypeHandoff:
		return decodeInto[HandoffPayload](m.Data)
	case TypePaymentRequest:
		return decodeInto[PaymentRequestPayload](m.Data)
	case TypeShowSavedCards:
		return decodeInto[SavedCardsPayload](m.Data)
	case TypeNeedNewCard:
		return decodeInto[NeedNewCardPayload](m.Data)
	case TypePaymentProcessing:
		return decodeInto[PaymentProcessingPayload](m.Data)
	case TypePaymentResult:
		return decodeInto[PaymentResultPayload](m.Data)
	case TypeOrderConfirmation:
		return decodeInto[OrderConfirmationPayload](m.Data)
	default:
		fields := m.Data
		if fields == nil {
			fields = map[string]any{}
		}
		return RawPayload{Type: m.Type, Fields: fields}, nil
	}
}

// EncodePayload returns the open data map for a typed payload.
func EncodePayload(p Payload) map[string]any {
	if raw, ok := p.(RawPayload); ok {
		if raw.Fields == nil {
			return map[string]any{}
		}
		return raw.Fields
	}

	out := map[string]any{}
	b, err := json.Marshal(p)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

// MessageFor builds a message whose type and data come from p.
func MessageFor(agent Participant, text string, p Payload) StructuredMessage {
	return NewMessage(agent, p.MessageType(), text, EncodePayload(p))
}

func decodeInto[T Payload](data map[string]any) (Payload, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return out, fmt.Errorf("encode %s data: %w", out.MessageType(), err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode %s data: %w", out.MessageType(), err)
	}
	return out, nil
}
