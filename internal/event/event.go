// Package event defines the wire protocol between the relay and its clients.
package event

import "encoding/json"

// Client-to-server event types.
const (
	TypeConnectJoin = "connect-join"
	TypeSendMessage = "send-message"
	TypeMarkRead    = "mark-read"
	TypeTypingStart = "typing-start"
	TypeTypingStop  = "typing-stop"
	TypePing        = "ping"
)

// Server-to-client event types.
const (
	TypeDeliveredAck     = "message-delivered-ack"
	TypeDeliveryError    = "message-delivery-error"
	TypeIncomingMessage  = "incoming-message"
	TypeReadReceipt      = "read-receipt"
	TypePresenceSnapshot = "presence-snapshot"
	TypePong             = "pong"
)

// Delivery status values carried by message-delivered-ack.
const (
	StatusDelivered = "delivered"
	StatusStored    = "stored"
)

// Envelope frames every event on the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New wraps a payload into an envelope of the given type.
func New(eventType string, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: eventType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}

// Join is the connect-join payload.
type Join struct {
	Username        string `json:"username"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Send is the send-message payload. From mirrors the client-side shape; the
// server trusts the session's joined username instead.
type Send struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DeliveredAck acknowledges a routed message back to the sender.
type DeliveredAck struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
}

// DeliveryError reports a rejected send back to the sender.
type DeliveryError struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// MarkRead is the mark-read payload.
type MarkRead struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// ReadReceipt notifies the original sender that a message was read.
type ReadReceipt struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
	ReadAt    string `json:"readAt"`
}

// Typing is the inbound typing payload and the relayed peer signal. To is
// only set client-to-server; Typing is only meaningful server-to-peer.
type Typing struct {
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Typing bool   `json:"typing"`
}
