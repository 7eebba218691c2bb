package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/Warehouser-dev/wryft-chat/internal/hub"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

// VoiceRefresher keeps a voice session alive when the client heartbeats over
// the socket instead of the HTTP endpoint.
type VoiceRefresher interface {
	Refresh(ctx context.Context, channelID, userID string) error
}

// Handler upgrades websocket requests and relays frames between one client
// and its topic's broadcast group.
type Handler struct {
	hub   *hub.Hub
	voice VoiceRefresher
}

// NewHandler creates a websocket handler. voice may be nil; socket-level
// voice heartbeats are then consumed without bookkeeping.
func NewHandler(h *hub.Hub, voice VoiceRefresher) *Handler {
	return &Handler{hub: h, voice: voice}
}

// ServeHTTP handles GET /ws?channel=<topic>&user=<identity>. The identity is
// validated upstream; admission control runs before the upgrade so a client
// over its connection budget is rejected with 429 and never holds a socket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topicName := r.URL.Query().Get("channel")
	identity := r.URL.Query().Get("user")
	if topicName == "" || identity == "" {
		http.Error(w, "channel and user are required", http.StatusBadRequest)
		return
	}

	if !h.hub.Admit(identity) {
		http.Error(w, "connection limit reached", http.StatusTooManyRequests)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.hub.Release(identity)
		slog.Debug("ws upgrade failed", "user", identity, "error", err)
		return
	}

	h.serve(conn, topicName, identity)
}

// serve runs the relay loops for one socket. The inbound loop runs on the
// calling goroutine; the outbound loop runs beside it, and whichever ends
// first tears the other down via cancellation and the socket close.
func (h *Handler) serve(conn net.Conn, topicName, identity string) {
	defer conn.Close()

	connID := uuid.NewString()
	sub := h.hub.Subscribe(topicName)
	slog.Info("ws connected", "conn_id", connID, "topic", topicName, "user", identity)

	h.hub.Publish(topicName, UserJoinedEvent(identity))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				if err := wsutil.WriteServerText(conn, []byte(msg)); err != nil {
					slog.Debug("ws write failed", "conn_id", connID, "error", err)
					conn.Close() // wakes the read loop
					return
				}
			}
		}
	}()

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			slog.Debug("ws read loop exit", "conn_id", connID, "error", err)
			break
		}
		h.handleFrame(ctx, topicName, data)
	}

	cancel()
	h.hub.Publish(topicName, UserLeftEvent(identity))
	h.hub.Unsubscribe(sub)
	h.hub.Release(identity)
	slog.Info("ws disconnected", "conn_id", connID, "topic", topicName, "user", identity)
}

func (h *Handler) handleFrame(ctx context.Context, topicName string, raw []byte) {
	frame := parseInbound(raw)

	if frame.heartbeat != nil && h.voice != nil {
		// Liveness bookkeeping only; heartbeats are never rebroadcast.
		if err := h.voice.Refresh(ctx, frame.heartbeat.ChannelID, frame.heartbeat.PeerID); err != nil {
			slog.Debug("voice heartbeat refresh failed",
				"channel", frame.heartbeat.ChannelID, "peer", frame.heartbeat.PeerID, "error", err)
		}
	}

	if frame.republish != "" {
		h.hub.Publish(topicName, frame.republish)
	}
}
