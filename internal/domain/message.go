// Package domain contains core domain types for the chat relay.
package domain

// Message is a single direct message between two users. Records live for
// the process lifetime and are mutated in place as delivery and read state
// changes.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp"`
	Delivered bool   `json:"delivered"`
	Read      bool   `json:"read"`
}

// PendingFor returns true if the message is addressed to the given user and
// has not been handed to them yet.
func (m *Message) PendingFor(username string) bool {
	return m.To == username && !m.Delivered
}
