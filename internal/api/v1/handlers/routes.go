package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	catalogh "github.com/caia/concierge/internal/api/v1/handlers/catalog"
	"github.com/caia/concierge/internal/api/v1/handlers/sessions"
	wsh "github.com/caia/concierge/internal/api/v1/handlers/websocket"
	v1mware "github.com/caia/concierge/internal/api/v1/middleware"
	"github.com/caia/concierge/internal/services"
)

func RegisterV1Routes(router *mux.Router, services *services.Services) {
	conversations := services.GetConversations()
	tokens := services.GetSessionService()

	// v1 routes
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(v1mware.RateLimit("global"))

	// Public v1 routes (no auth required)
	v1publicRouter := v1.NewRoute().Subrouter()
	v1publicRouter.Handle("/sessions", v1mware.RateLimit("session_create")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions.HandleCreateSession(conversations, tokens, w, r)
	}))).Methods("POST")
	v1publicRouter.HandleFunc("/catalog/products", func(w http.ResponseWriter, r *http.Request) {
		catalogh.HandleListProducts(services.GetCatalog(), w, r)
	}).Methods("GET")

	// Session routes (require a token issued for {id})
	v1sessionRouter := v1.NewRoute().Subrouter()
	v1sessionRouter.Use(v1mware.RequireSession(tokens))

	v1sessionRouter.HandleFunc("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessions.HandleGetSession(conversations, w, r)
	}).Methods("GET")
	v1sessionRouter.HandleFunc("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessions.HandleDeleteSession(conversations, tokens, services.GetConnectionManager(), w, r)
	}).Methods("DELETE")
	v1sessionRouter.Handle("/sessions/{id}/messages", v1mware.RateLimit("chat_turn")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions.HandlePostMessage(conversations, w, r)
	}))).Methods("POST")
	v1sessionRouter.HandleFunc("/sessions/{id}/cards/select", func(w http.ResponseWriter, r *http.Request) {
		sessions.HandleSelectCard(conversations, w, r)
	}).Methods("POST")
	v1sessionRouter.HandleFunc("/sessions/{id}/cards/new", func(w http.ResponseWriter, r *http.Request) {
		sessions.HandleNewCard(conversations, w, r)
	}).Methods("POST")
	v1sessionRouter.HandleFunc("/sessions/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
		sessions.HandleReset(conversations, w, r)
	}).Methods("POST")
	v1sessionRouter.HandleFunc("/sessions/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		wsh.HandleEvents(conversations, services.GetBroker(), services.GetConnectionManager(), w, r)
	}).Methods("GET")
}
