// Package sessions serves the conversation session endpoints.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/caia/concierge/internal/connections"
	"github.com/caia/concierge/internal/services/conversation"
	"github.com/caia/concierge/internal/services/reveal"
	"github.com/caia/concierge/internal/services/session"
	"github.com/caia/concierge/pkg/httpext"
)

// use a single instance of Validate, it caches struct info
var validate = validator.New(validator.WithRequiredStructEnabled())

type CreateSessionRequest struct {
	CustomerID string `json:"customerId" validate:"omitempty,max=64"`
}

type CreateSessionResponse struct {
	SessionID  string    `json:"sessionId"`
	CustomerID string    `json:"customerId"`
	Token      string    `json:"token"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type SelectCardRequest struct {
	CardID string `json:"cardId" validate:"required,max=64"`
}

type SnapshotResponse struct {
	SessionID string `json:"sessionId"`
	conversation.Snapshot
	Messages []reveal.DisplayMessage `json:"messages"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

var accepted = acceptedResponse{Status: "accepted"}

// HandleCreateSession starts a conversation and returns its bearer token.
func HandleCreateSession(conversations *conversation.Manager, tokens *session.Service, w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpext.JsonError(w, "Invalid customerId", http.StatusBadRequest)
		return
	}

	s, err := conversations.Create(req.CustomerID)
	if errors.Is(err, conversation.ErrUnknownCustomer) {
		httpext.JsonError(w, "Unknown customer", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		httpext.JsonError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	snap, _, err := s.Snapshot(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}

	token, err := tokens.Issue(r.Context(), s.ID, snap.CustomerID)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.ID).Msg("Failed to issue session token")
		_ = conversations.Close(s.ID)
		httpext.JsonError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("session_id", s.ID).
		Str("customer_id", snap.CustomerID).
		Str("client_ip", r.RemoteAddr).
		Msg("Session created")

	httpext.JsonResponse(w, http.StatusCreated, CreateSessionResponse{
		SessionID:  s.ID,
		CustomerID: snap.CustomerID,
		Token:      token,
		CreatedAt:  s.CreatedAt,
	})
}

func HandleGetSession(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request) {
	s, ok := lookup(conversations, w, r)
	if !ok {
		return
	}

	snap, messages, err := s.Snapshot(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if messages == nil {
		messages = []reveal.DisplayMessage{}
	}
	httpext.JsonResponse(w, http.StatusOK, SnapshotResponse{SessionID: s.ID, Snapshot: snap, Messages: messages})
}

// HandleDeleteSession ends the conversation, revokes its tokens and closes
// its event streams.
func HandleDeleteSession(conversations *conversation.Manager, tokens *session.Service, conns *connections.Manager, w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := conversations.Close(id); err != nil {
		writeCommandError(w, err)
		return
	}
	if err := tokens.Revoke(r.Context(), id); err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("Failed to revoke session token")
	}
	closed := conns.CloseSession(id)

	log.Info().Str("session_id", id).Int("streams_closed", closed).Msg("Session deleted")
	httpext.JsonResponse(w, http.StatusNoContent, nil)
}

func HandlePostMessage(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	send(conversations, w, r, conversation.UserInput{Text: req.Text})
}

func HandleReset(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request) {
	s, ok := lookup(conversations, w, r)
	if !ok {
		return
	}
	if err := s.Send(r.Context(), conversation.Reset{}); err != nil {
		writeCommandError(w, err)
		return
	}
	httpext.JsonResponse(w, http.StatusNoContent, nil)
}

func send(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request, cmd conversation.Command) {
	s, ok := lookup(conversations, w, r)
	if !ok {
		return
	}
	if err := s.Send(r.Context(), cmd); err != nil {
		writeCommandError(w, err)
		return
	}
	httpext.JsonResponse(w, http.StatusAccepted, accepted)
}

func lookup(conversations *conversation.Manager, w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	s, err := conversations.Get(mux.Vars(r)["id"])
	if err != nil {
		writeCommandError(w, err)
		return nil, false
	}
	return s, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		log.Warn().Err(err).Msg("Request validation failed")
		httpext.JsonErrorWithDetails(w, http.StatusBadRequest, ErrorFromValidation(err))
		return false
	}
	return true
}

// decodeOptional accepts an empty body as the zero request.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ErrorFromValidation lists each failing field with the tag it failed.
func ErrorFromValidation(err error) httpext.ErrorResponse {
	resp := httpext.ErrorResponse{Error: "Invalid request"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[fe.Field()] = fe.Tag()
		}
	}
	return resp
}

// writeCommandError maps conversation errors onto HTTP status codes.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		httpext.JsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, conversation.ErrInputGated),
		errors.Is(err, conversation.ErrParticipantBusy),
		errors.Is(err, conversation.ErrNotAwaitingCard):
		httpext.JsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, conversation.ErrSessionNotFound),
		errors.Is(err, conversation.ErrSessionClosed):
		httpext.JsonError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpext.JsonError(w, "Request cancelled", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Session command failed")
		httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}
