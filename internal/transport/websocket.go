// Package transport accepts WebSocket connections and bridges them to the
// relay's event handlers.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pindrop-app/relay/internal/event"
	"github.com/pindrop-app/relay/internal/relay"
	"github.com/pindrop-app/relay/internal/session"
)

// queueSize bounds the per-connection outbound queue. The writer drains it
// into the socket so relay handlers never block on a slow client.
const queueSize = 256

// Handler upgrades HTTP requests to WebSocket chat connections.
type Handler struct {
	relay          *relay.Relay
	allowedOrigins []string
}

// NewHandler creates a WebSocket handler bound to the relay.
func NewHandler(r *relay.Relay, allowedOrigins []string) *Handler {
	return &Handler{relay: r, allowedOrigins: allowedOrigins}
}

// conn tracks one client connection from accept to teardown. sess stays nil
// until the client joins.
type conn struct {
	ws           *websocket.Conn
	connectionID string
	out          chan event.Envelope
	sess         *session.Session
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}

	c := &conn{
		ws:           ws,
		connectionID: uuid.New().String(),
		out:          make(chan event.Envelope, queueSize),
	}
	slog.Info("WebSocket connected", "connection_id", c.connectionID, "ip", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)

	h.relay.Disconnect(c.connectionID)
	if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
		slog.Debug("Failed to close websocket", "error", closeErr, "connection_id", c.connectionID)
	}
	slog.Info("WebSocket disconnected", "connection_id", c.connectionID)
}

func (h *Handler) readLoop(ctx context.Context, c *conn) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "connection_id", c.connectionID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "connection_id", c.connectionID)
			}
			return
		}

		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Malformed envelope", "error", err, "connection_id", c.connectionID)
			continue
		}
		h.dispatch(c, env)
	}
}

func (h *Handler) dispatch(c *conn, env event.Envelope) {
	switch env.Type {
	case event.TypeConnectJoin:
		var p event.Join
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Username == "" {
			slog.Warn("Invalid join payload", "error", err, "connection_id", c.connectionID)
			return
		}
		c.sess = session.New(p.Username, c.connectionID, p.IsAuthenticated, c.out)
		c.sess.OnClose(c.close)
		h.relay.Connect(c.sess)

	case event.TypeSendMessage:
		var p event.Send
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			slog.Warn("Invalid send payload", "error", err, "connection_id", c.connectionID)
			return
		}
		if c.sess == nil {
			h.rejectUnjoined(c, p)
			return
		}
		h.relay.Send(c.sess, p.To, p.Message, p.Timestamp)

	case event.TypeMarkRead:
		if c.sess == nil {
			slog.Debug("Read mark before join dropped", "connection_id", c.connectionID)
			return
		}
		var p event.MarkRead
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			slog.Warn("Invalid mark-read payload", "error", err, "connection_id", c.connectionID)
			return
		}
		h.relay.MarkRead(p.ConversationID, p.MessageID)

	case event.TypeTypingStart, event.TypeTypingStop:
		if c.sess == nil {
			slog.Debug("Typing signal before join dropped", "connection_id", c.connectionID)
			return
		}
		var p event.Typing
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			slog.Warn("Invalid typing payload", "error", err, "connection_id", c.connectionID)
			return
		}
		h.relay.Typing(c.sess, p.To, env.Type == event.TypeTypingStart)

	case event.TypePing:
		c.enqueue(event.Envelope{Type: event.TypePong})

	default:
		slog.Debug("Unknown event type", "type", env.Type, "connection_id", c.connectionID)
	}
}

// rejectUnjoined answers a send from a connection that never joined.
func (h *Handler) rejectUnjoined(c *conn, p event.Send) {
	slog.Warn("Send before join rejected", "connection_id", c.connectionID)
	env, err := event.New(event.TypeDeliveryError, event.DeliveryError{
		To:        p.To,
		Message:   p.Message,
		Error:     "join before sending",
		Timestamp: p.Timestamp,
	})
	if err != nil {
		return
	}
	c.enqueue(env)
}

func (h *Handler) writeLoop(ctx context.Context, c *conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.out:
			data, err := json.Marshal(env)
			if err != nil {
				slog.Error("Failed to encode envelope", "error", err, "connection_id", c.connectionID)
				continue
			}
			if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("WebSocket write error", "error", err, "connection_id", c.connectionID)
				return
			}
		}
	}
}

func (c *conn) enqueue(env event.Envelope) {
	select {
	case c.out <- env:
	default:
		slog.Debug("Outbound queue full, event dropped", "connection_id", c.connectionID, "type", env.Type)
	}
}

// close is installed as the session close hook. The goroutine keeps the
// close handshake out of the relay's critical section.
func (c *conn) close(reason string) {
	go func() {
		_ = c.ws.Close(websocket.StatusNormalClosure, reason)
	}()
}
