package relay

import (
	"log/slog"

	"github.com/pindrop-app/relay/internal/event"
	"github.com/pindrop-app/relay/internal/session"
)

// broadcastPresence pushes the full online-user list to every connected
// session. Always a complete snapshot, never a diff. Callers hold r.mu.
func (r *Relay) broadcastPresence() {
	users := r.registry.Usernames()
	env, err := event.New(event.TypePresenceSnapshot, users)
	if err != nil {
		slog.Error("Failed to encode presence snapshot", "error", err)
		return
	}

	presenceBroadcasts.Inc()
	for _, s := range r.registry.Sessions() {
		if !s.Send(env) {
			slog.Debug("Presence snapshot dropped", "username", s.Username)
		}
	}
	slog.Debug("Presence broadcast", "online", len(users))
}

// Typing relays a typing signal to the peer when they are online. Nothing is
// stored and the sender never hears back, online peer or not.
func (r *Relay) Typing(sender *session.Session, to string, typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, online := r.registry.Lookup(to)
	if !online {
		return
	}

	eventType := event.TypeTypingStart
	if !typing {
		eventType = event.TypeTypingStop
	}
	r.emit(peer, eventType, event.Typing{From: sender.Username, Typing: typing})
}
