package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"medhub/domain"
	"medhub/domain/event"
	"medhub/runtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var validate = validator.New()

// Handler upgrades /ws requests and runs one session per connection.
// The first message must be user:join; everything before that is
// rejected. Disconnect of either pump tears the session down, which is
// how the registry learns about closed tabs and crashes.
type Handler struct {
	log        *slog.Logger
	hub        *runtime.Hub
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, hub *runtime.Hub, bufferSize int) *Handler {
	return &Handler{
		log: log,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser tabs of the admin dashboard; origin policy is
			// enforced by the reverse proxy in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	sink := NewSink(h.bufferSize)
	done := make(chan struct{})

	go h.writePump(conn, sink, done)
	h.readPump(r.Context(), conn, sink, sessionID)

	close(done)
	_ = conn.Close()
}

// readPump processes inbound frames to completion, one at a time, and
// returns on any read error (closed tab, network drop). Leave runs
// exactly once on the way out.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sink *Sink, sessionID string) {
	joinedUserID := ""
	defer func() {
		if joinedUserID != "" {
			h.hub.Leave(sessionID)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug("connection closed", "session_id", sessionID, "error", err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.replyError(ctx, sink, "", fmt.Sprintf("malformed frame: %v", err))
			continue
		}

		if joinedUserID == "" && env.Event != KindUserJoin {
			h.replyError(ctx, sink, env.CorrelationID, "first message must be user:join")
			continue
		}

		switch env.Event {
		case KindUserJoin:
			joinedUserID = h.handleJoin(ctx, env, sink, sessionID, joinedUserID)
		case KindPageChange:
			var p PageChangePayload
			if !h.decode(ctx, sink, env, &p) {
				continue
			}
			h.hub.PageChange(sessionID, p.Page)
		case KindInventoryChange:
			var p InventoryChangePayload
			if !h.decode(ctx, sink, env, &p) {
				continue
			}
			h.hub.Publish(event.InventoryUpdated{
				MedicineID: p.MedicineID,
				Medicine:   p.MedicineData,
				UserID:     p.UserID,
			}, sessionID)
		case KindEditLock:
			var p LockPayload
			if !h.decode(ctx, sink, env, &p) {
				continue
			}
			result := h.hub.AcquireLock(sessionID, p.DocumentID, domain.DocumentType(p.DocumentType), p.UserID)
			h.reply(ctx, sink, env.CorrelationID, event.LockReply{
				DocumentID: p.DocumentID,
				Granted:    result.Granted,
				HeldBy:     result.HeldBy,
			})
		case KindEditUnlock:
			var p UnlockPayload
			if !h.decode(ctx, sink, env, &p) {
				continue
			}
			released := h.hub.ReleaseLock(sessionID, p.DocumentID, p.UserID)
			h.reply(ctx, sink, env.CorrelationID, event.UnlockReply{
				DocumentID: p.DocumentID,
				Released:   released,
			})
		default:
			h.replyError(ctx, sink, env.CorrelationID, fmt.Sprintf("unknown event %q", env.Event))
		}
	}
}

// handleJoin registers the session and seeds the new client with the
// users:active snapshot. A repeated join for the same user is answered
// with a fresh snapshot; a join that tries to rename the session's user
// is rejected, because presence bookkeeping and lock cleanup are keyed
// by the user the session registered as. Returns the session's user id,
// or "" if nothing was registered.
func (h *Handler) handleJoin(ctx context.Context, env Envelope, sink *Sink, sessionID, joinedUserID string) string {
	var p JoinPayload
	if !h.decode(ctx, sink, env, &p) {
		return joinedUserID
	}
	if joinedUserID != "" && p.UserID != joinedUserID {
		h.replyError(ctx, sink, env.CorrelationID, "session already joined as another user")
		return joinedUserID
	}

	session := domain.Session{
		ID:          sessionID,
		UserID:      p.UserID,
		Username:    p.Username,
		ConnectedAt: time.Now().UTC(),
	}
	active := h.hub.Join(session, sink)

	h.reply(ctx, sink, env.CorrelationID, event.ActiveUsers{Users: active})
	return p.UserID
}

// decode unmarshals and validates an inbound payload, answering the
// sender with an error frame on failure.
func (h *Handler) decode(ctx context.Context, sink *Sink, env Envelope, out any) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		h.replyError(ctx, sink, env.CorrelationID, fmt.Sprintf("invalid %s payload: %v", env.Event, err))
		return false
	}
	if err := validate.Struct(out); err != nil {
		h.replyError(ctx, sink, env.CorrelationID, fmt.Sprintf("invalid %s payload: %v", env.Event, err))
		return false
	}
	return true
}

func (h *Handler) reply(ctx context.Context, sink *Sink, correlationID string, e event.DomainEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error("failed to marshal reply", "kind", e.Kind(), "error", err)
		return
	}
	if err := sink.Send(ctx, Envelope{Event: e.Kind(), CorrelationID: correlationID, Payload: payload}); err != nil {
		h.log.Debug("reply dropped", "kind", e.Kind(), "error", err)
	}
}

func (h *Handler) replyError(ctx context.Context, sink *Sink, correlationID, message string) {
	payload, _ := json.Marshal(ErrorPayload{Message: message})
	if err := sink.Send(ctx, Envelope{Event: KindError, CorrelationID: correlationID, Payload: payload}); err != nil {
		h.log.Debug("error reply dropped", "error", err)
	}
}

// writePump serializes all outbound frames for one connection and keeps
// the connection alive with pings. Exactly one writer per connection.
func (h *Handler) writePump(conn *websocket.Conn, sink *Sink, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-sink.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				h.log.Debug("write failed, closing connection", "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
