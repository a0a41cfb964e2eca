// Package client is a Go client for the hub's websocket endpoint.
// Lock and unlock are proper request/response calls: each request
// carries a correlation id and resolves on the single matching reply,
// or fails on timeout. No manual subscribe/unsubscribe bookkeeping.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"medhub/domain/event"
	apperrors "medhub/errors"
	"medhub/transport/ws"
)

type Client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan ws.Envelope

	events chan ws.Envelope
	closed chan struct{}
}

// Dial connects to the hub and starts the read loop. The caller must
// Join before anything else; the server rejects other messages first.
func Dial(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to hub at %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{
		log:     log,
		conn:    conn,
		pending: make(map[string]chan ws.Envelope),
		events:  make(chan ws.Envelope, 64),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Events delivers broadcast frames (everything that is not a reply to
// one of this client's own requests). Events arriving while the buffer
// is full are dropped, mirroring the server's best-effort delivery.
func (c *Client) Events() <-chan ws.Envelope {
	return c.events
}

// Join registers this connection and returns who else is online.
func (c *Client) Join(ctx context.Context, userID, username string) (event.ActiveUsers, error) {
	var seed event.ActiveUsers
	env, err := c.request(ctx, ws.KindUserJoin, ws.JoinPayload{UserID: userID, Username: username})
	if err != nil {
		return seed, err
	}
	if err := json.Unmarshal(env.Payload, &seed); err != nil {
		return seed, fmt.Errorf("bad users:active payload: %w", err)
	}
	return seed, nil
}

// PageChange updates this session's presence metadata. Fire-and-forget.
func (c *Client) PageChange(userID, page string) error {
	return c.send(ws.Envelope{Event: ws.KindPageChange, Payload: mustMarshal(ws.PageChangePayload{
		UserID: userID,
		Page:   page,
	})})
}

// NotifyInventoryChange asks the hub to broadcast an inventory update
// to the other connected dashboards.
func (c *Client) NotifyInventoryChange(p ws.InventoryChangePayload) error {
	return c.send(ws.Envelope{Event: ws.KindInventoryChange, Payload: mustMarshal(p)})
}

// Lock attempts to acquire the edit lock on a document. A denial is a
// normal reply with Granted false and the current holder.
func (c *Client) Lock(ctx context.Context, documentID, documentType, userID string) (event.LockReply, error) {
	var reply event.LockReply
	env, err := c.request(ctx, ws.KindEditLock, ws.LockPayload{
		DocumentID:   documentID,
		DocumentType: documentType,
		UserID:       userID,
	})
	if err != nil {
		return reply, err
	}
	if err := json.Unmarshal(env.Payload, &reply); err != nil {
		return reply, fmt.Errorf("bad lockResult payload: %w", err)
	}
	return reply, nil
}

// Unlock releases the edit lock on a document, if this user holds it.
func (c *Client) Unlock(ctx context.Context, documentID, userID string) (event.UnlockReply, error) {
	var reply event.UnlockReply
	env, err := c.request(ctx, ws.KindEditUnlock, ws.UnlockPayload{
		DocumentID: documentID,
		UserID:     userID,
	})
	if err != nil {
		return reply, err
	}
	if err := json.Unmarshal(env.Payload, &reply); err != nil {
		return reply, fmt.Errorf("bad unlockResult payload: %w", err)
	}
	return reply, nil
}

// request sends a correlated frame and blocks for its single reply.
func (c *Client) request(ctx context.Context, kind event.Kind, payload any) (ws.Envelope, error) {
	correlationID := uuid.NewString()
	replyChan := make(chan ws.Envelope, 1)

	c.pendingMu.Lock()
	c.pending[correlationID] = replyChan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, correlationID)
		c.pendingMu.Unlock()
	}()

	err := c.send(ws.Envelope{Event: kind, CorrelationID: correlationID, Payload: mustMarshal(payload)})
	if err != nil {
		return ws.Envelope{}, err
	}

	select {
	case env := <-replyChan:
		if env.Event == ws.KindError {
			var p ws.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			return env, fmt.Errorf("%w: %s", apperrors.ErrInvalidPayload, p.Message)
		}
		return env, nil
	case <-ctx.Done():
		return ws.Envelope{}, fmt.Errorf("%w: %s", apperrors.ErrRequestTimeout, kind)
	case <-c.closed:
		return ws.Envelope{}, fmt.Errorf("connection closed waiting for %s", kind)
	}
}

func (c *Client) send(env ws.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) readLoop() {
	defer close(c.closed)
	for {
		var env ws.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.log.Debug("read loop finished", "error", err)
			return
		}

		if env.CorrelationID != "" {
			c.pendingMu.Lock()
			replyChan, ok := c.pending[env.CorrelationID]
			c.pendingMu.Unlock()
			if ok {
				replyChan <- env
				continue
			}
		}

		select {
		case c.events <- env:
		default:
			c.log.Debug("event buffer full, dropping", "kind", env.Event)
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
