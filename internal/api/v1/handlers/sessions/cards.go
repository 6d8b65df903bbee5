package sessions

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/caia/concierge/internal/services/conversation"
	"github.com/caia/concierge/internal/services/payment"
	"github.com/caia/concierge/pkg/httpext"
)

func HandleSelectCard(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request) {
	var req SelectCardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	send(conversations, w, r, conversation.SelectCard{CardID: req.CardID})
}

// HandleNewCard validates the submitted card locally. Only the derived
// last4, brand, name and expiry reach the conversation.
func HandleNewCard(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request) {
	var req payment.NewCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	card, err := req.Validate(time.Now())
	if err != nil {
		var fields payment.FieldErrors
		if errors.As(err, &fields) {
			httpext.JsonErrorWithDetails(w, http.StatusBadRequest, httpext.ErrorResponse{
				Error:  "Invalid card details",
				Fields: fields,
			})
			return
		}
		log.Error().Err(err).Msg("Card validation failed unexpectedly")
		httpext.JsonError(w, "Invalid card details", http.StatusBadRequest)
		return
	}

	send(conversations, w, r, conversation.SubmitNewCard{Card: card})
}
