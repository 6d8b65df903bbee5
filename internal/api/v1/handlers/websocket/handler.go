// Package websocket streams a session's UI events to the browser.
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/connections"
	"github.com/caia/concierge/internal/services/conversation"
	"github.com/caia/concierge/internal/services/events"
	"github.com/caia/concierge/pkg/httpext"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin allows any origin unless ALLOWED_ORIGINS lists hosts.
func checkOrigin(r *http.Request) bool {
	allowed := config.GetAllowedOrigins()
	origin := r.Header.Get("Origin")
	if allowed == "" || origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range strings.Split(allowed, ",") {
		a = strings.TrimSpace(a)
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

// HandleEvents upgrades to a websocket and forwards every event published for
// the session until either side goes away.
func HandleEvents(conversations *conversation.Manager, broker events.Broker, conns *connections.Manager, w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if _, err := conversations.Get(sessionID); err != nil {
		httpext.JsonError(w, "Session not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, unsubscribe, err := broker.Subscribe(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to subscribe to session events")
		httpext.JsonError(w, "Event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Could not upgrade connection")
		return
	}

	conns.AddConnection(sessionID, conn)
	defer func() {
		conns.RemoveConnection(sessionID, conn)
		conn.Close()
	}()

	timeouts := conns.GetTimeouts()
	log.Info().Str("session_id", sessionID).Msg("Event stream connected")

	// Set up ping/pong handlers
	_ = conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go writeLoop(conn, stream, timeouts, cancel, done)

	// The stream is one-way; reads only service control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session_id", sessionID).Msg("Unexpected websocket closure")
			}
			break
		}
	}
	log.Info().Str("session_id", sessionID).Msg("Event stream disconnected")
}

// writeLoop is the connection's only data writer. It owns the ping ticker and
// closes the socket once the event stream ends.
func writeLoop(conn *websocket.Conn, stream <-chan events.Event, timeouts connections.TimeoutConfig, cancel context.CancelFunc, done <-chan struct{}) {
	ticker := time.NewTicker(timeouts.PingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeouts.WriteWait))
				_ = conn.Close()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(timeouts.WriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeouts.WriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
