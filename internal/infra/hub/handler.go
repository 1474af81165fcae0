package hub

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// WebSocketHandler upgrades requests on the real-time path and pumps
// inbound frames into the hub. All chat real-time traffic uses this one
// path; other paths never reach it.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
	log           *zerolog.Logger
}

func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool, logger *zerolog.Logger) *WebSocketHandler {
	wLog := logger.With().Str("component", "WebSocketHandler").Logger()
	return &WebSocketHandler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		log:           &wLog,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error().Err(err).Str("ip", r.RemoteAddr).Msg("websocket accept failed")
		return
	}
	h.log.Info().Str("ip", r.RemoteAddr).Msg("websocket connected")

	defer func() {
		// Close and error paths both land here, so a missed pong or a
		// dropped transport always cleans up the registry.
		h.hub.Unregister(ws)
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	ctx := r.Context()
	for {
		// Within a single connection, inbound messages are handled in
		// arrival order; there is no reordering.
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.log.Debug().Msg("websocket closed by client")
			} else {
				h.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		h.hub.HandleInbound(ws, message)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.log.Warn().Str("origin", origin).Str("allowed", h.allowedOrigin).Msg("websocket origin rejected")
	return false
}
