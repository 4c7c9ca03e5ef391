package relay

import (
	"log/slog"
	"time"

	"github.com/pindrop-app/relay/internal/domain"
	"github.com/pindrop-app/relay/internal/event"
	"github.com/pindrop-app/relay/internal/session"
)

// Send routes one message from a joined session. The message is appended to
// the conversation store before any delivery attempt, so a recipient
// disconnecting mid-route can never lose it.
func (r *Relay) Send(sender *session.Session, to, body, timestamp string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if reason, ok := r.validateSend(sender, to, body); !ok {
		deliveryErrors.Inc()
		slog.Warn("Send rejected", "from", sender.Username, "to", to, "reason", reason)
		r.emit(sender, event.TypeDeliveryError, event.DeliveryError{
			To:        to,
			Message:   body,
			Error:     reason,
			Timestamp: timestamp,
		})
		return
	}

	msg := r.store.Append(sender.Username, to, body, timestamp)

	status := event.StatusStored
	if recipient, online := r.registry.Lookup(to); online {
		if r.deliver(recipient, msg) {
			status = event.StatusDelivered
		}
	}

	messagesRouted.WithLabelValues(status).Inc()
	r.emit(sender, event.TypeDeliveredAck, event.DeliveredAck{
		To:        to,
		Message:   body,
		Timestamp: timestamp,
		Status:    status,
		MessageID: msg.ID,
	})
	slog.Debug("Message routed", "from", sender.Username, "to", to, "status", status, "message_id", msg.ID)
}

func (r *Relay) validateSend(sender *session.Session, to, body string) (string, bool) {
	switch {
	case to == "":
		return "recipient is required", false
	case body == "":
		return "message body is required", false
	case len(body) > r.opts.MaxMessageBytes:
		return "message body too large", false
	case !sender.AllowSend():
		return "send rate exceeded", false
	}
	return "", true
}

// deliver hands the message to an online recipient. The stored record flips
// to delivered only after the envelope is queued; a saturated queue leaves
// it pending for the next backlog flush. The wire copy always reads
// delivered=true, the state the recipient observes it in.
func (r *Relay) deliver(recipient *session.Session, msg *domain.Message) bool {
	wire := *msg
	wire.Delivered = true
	env, err := event.New(event.TypeIncomingMessage, wire)
	if err != nil {
		slog.Error("Failed to encode message", "error", err, "message_id", msg.ID)
		return false
	}
	if !recipient.Send(env) {
		slog.Warn("Recipient queue saturated, message left pending", "to", recipient.Username, "message_id", msg.ID)
		return false
	}
	msg.Delivered = true
	return true
}

// flushBacklog replays messages stored while the user was offline. Delivery
// stops at the first failed enqueue to keep within-conversation order.
func (r *Relay) flushBacklog(s *session.Session) {
	pending := r.store.ListPending(s.Username)
	if len(pending) == 0 {
		return
	}

	flushed := 0
	for _, msg := range pending {
		if !r.deliver(s, msg) {
			break
		}
		flushed++
	}
	backlogFlushed.Add(float64(flushed))
	slog.Info("Backlog flushed", "username", s.Username, "pending", len(pending), "delivered", flushed)
}

// MarkRead flags a stored message as read and notifies the original sender
// when they are online. Unknown conversations and ids are a silent no-op.
func (r *Relay) MarkRead(conversationID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.store.MarkRead(conversationID, messageID)
	if !ok {
		slog.Debug("Read mark for unknown message", "conversation_id", conversationID, "message_id", messageID)
		return
	}

	sender, online := r.registry.Lookup(msg.From)
	if !online {
		return
	}
	readReceipts.Inc()
	r.emit(sender, event.TypeReadReceipt, event.ReadReceipt{
		MessageID: msg.ID,
		ReadBy:    msg.To,
		ReadAt:    time.Now().UTC().Format(time.RFC3339),
	})
}
