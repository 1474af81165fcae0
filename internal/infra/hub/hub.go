// File: internal/infra/hub/hub.go
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tutoring-ai-platform/internal/config"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/adapter"
	"tutoring-ai-platform/internal/infra/metrics"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

var _ adapter.JobEventNotifier = (*Hub)(nil)

// conn is the subset of *websocket.Conn the hub needs. Tests substitute
// fakes; production always passes real connections.
type conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub multiplexes live connections per user and fans server-initiated
// events out to every connection a user has open (multiple tabs are
// multiple connections under the same user id).
type Hub struct {
	cfg config.HubConfig
	log *zerolog.Logger

	mu     sync.RWMutex
	byUser map[int64]map[conn]struct{}
	owners map[conn]int64

	stop     chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
}

func NewHub(cfg config.HubConfig, logger *zerolog.Logger) *Hub {
	hLog := logger.With().Str("component", "Hub").Logger()
	return &Hub{
		cfg:      cfg,
		log:      &hLog,
		byUser:   make(map[int64]map[conn]struct{}),
		owners:   make(map[conn]int64),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Register files c under userID and acknowledges on the same connection.
// Registering an already-registered connection moves it to the new user.
func (h *Hub) Register(c conn, userID int64) {
	h.mu.Lock()
	prev, known := h.owners[c]
	if known && prev != userID {
		h.removeLocked(c, prev)
	}
	// Moving a connection between users is not a new connection; only count
	// ones the hub has never seen.
	if !known {
		metrics.IncWSConnections()
	}
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[conn]struct{})
		h.byUser[userID] = set
	}
	set[c] = struct{}{}
	h.owners[c] = userID
	h.mu.Unlock()

	h.log.Info().Int64("user_id", userID).Msg("connection registered")
	h.send(c, registeredEvent{Type: "registered", UserID: userID, Status: "success"})
}

// Unregister removes c from whichever user's set contains it. Removing the
// last connection for a user drops the user's entry entirely.
func (h *Hub) Unregister(c conn) {
	h.mu.Lock()
	userID, ok := h.owners[c]
	if ok {
		h.removeLocked(c, userID)
		metrics.DecWSConnections()
	}
	h.mu.Unlock()
	if ok {
		h.log.Info().Int64("user_id", userID).Msg("connection unregistered")
	}
}

func (h *Hub) removeLocked(c conn, userID int64) {
	delete(h.owners, c)
	if set, ok := h.byUser[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// HandleInbound parses one inbound envelope from c. Malformed payloads get
// an error event back on the same connection; the connection stays open.
// Unknown types are logged and ignored.
func (h *Hub) HandleInbound(c conn, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		h.log.Debug().Err(err).Msg("malformed inbound message")
		h.send(c, errorEvent{Type: "error", Message: "malformed message"})
		return
	}

	switch env.Type {
	case "register":
		if env.UserID <= 0 {
			h.send(c, errorEvent{Type: "error", Message: "register requires a userId"})
			return
		}
		h.Register(c, env.UserID)
	default:
		h.log.Debug().Str("type", env.Type).Msg("ignoring unknown inbound message type")
	}
}

// Broadcast sends event to every currently-registered connection for
// userID. Connections that fail the write are skipped, not treated as
// errors; their read loop will notice the closed transport and unregister.
// Broadcasting to a user with no connections is a no-op.
func (h *Hub) Broadcast(userID int64, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("could not encode event")
		return
	}

	h.mu.RLock()
	conns := make([]conn, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.writeRaw(c, data)
	}
	if len(conns) > 0 {
		if typed, ok := eventType(data); ok {
			metrics.IncWSEventSent(typed)
		}
	}
}

// StartPingLoop pings every connection at the configured interval and
// force-closes any that misses its pong grace window. The close wakes the
// connection's read loop, which unregisters it.
func (h *Hub) StartPingLoop() {
	go func() {
		defer close(h.loopDone)
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.pingAll()
			}
		}
	}()
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.loopDone
}

func (h *Hub) pingAll() {
	h.mu.RLock()
	conns := make([]conn, 0, len(h.owners))
	for c := range h.owners {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		go func(c conn) {
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.PongGrace)
			defer cancel()
			if err := c.Ping(ctx); err != nil {
				h.log.Warn().Err(err).Msg("ping missed grace window, closing connection")
				_ = c.Close(websocket.StatusPolicyViolation, "ping timeout")
			}
		}(c)
	}
}

// ---- JobEventNotifier ----

func (h *Hub) JobStarted(userID int64) {
	h.Broadcast(userID, typingStatusEvent{Type: "typing_status", IsTyping: true, Timestamp: time.Now().UnixMilli()})
}

func (h *Hub) JobCompleted(userID int64, job *model.ChatJob) {
	h.Broadcast(userID, typingStatusEvent{Type: "typing_status", IsTyping: false, Timestamp: time.Now().UnixMilli()})
	if job.Result != nil {
		h.Broadcast(userID, chatResponseEvent{Type: "chat_response", JobID: job.ID, Message: job.Result.Assistant.Content})
	}
}

func (h *Hub) JobFailed(userID int64, reason string) {
	h.Broadcast(userID, typingStatusEvent{Type: "typing_status", IsTyping: false, Timestamp: time.Now().UnixMilli()})
	h.Broadcast(userID, errorEvent{Type: "error", Message: reason})
}

// ---- internals ----

func (h *Hub) send(c conn, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("could not encode event")
		return
	}
	h.writeRaw(c, data)
	if typed, ok := eventType(data); ok {
		metrics.IncWSEventSent(typed)
	}
}

func (h *Hub) writeRaw(c conn, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("dropping event for unwritable connection")
	}
}

func eventType(data []byte) (string, bool) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Type == "" {
		return "", false
	}
	return probe.Type, true
}
