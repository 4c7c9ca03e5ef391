// Package relay implements the message routing core: store-and-forward
// private messaging, presence snapshots, read receipts, and typing
// passthrough over in-memory session and conversation state.
package relay

import (
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/pindrop-app/relay/internal/conversation"
	"github.com/pindrop-app/relay/internal/domain"
	"github.com/pindrop-app/relay/internal/event"
	"github.com/pindrop-app/relay/internal/session"
)

// DefaultMaxMessageBytes caps message bodies when no limit is configured.
const DefaultMaxMessageBytes = 4096

// Options tunes per-session send policy.
type Options struct {
	// SendRateLimit is the sustained messages-per-second allowance per
	// session. Zero or negative disables throttling.
	SendRateLimit float64
	SendRateBurst int
	// MaxMessageBytes caps the body size of a single message.
	MaxMessageBytes int
}

// Relay owns the session registry and conversation store and serializes
// every event handler against them. Each handler runs to completion before
// the next begins, so a send observes either the state before or after a
// concurrent connect, never the middle.
type Relay struct {
	mu       sync.Mutex
	registry *session.Registry
	store    *conversation.Store
	opts     Options
}

// New creates a relay around the given registry and store.
func New(registry *session.Registry, store *conversation.Store, opts Options) *Relay {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if opts.SendRateLimit > 0 && opts.SendRateBurst <= 0 {
		opts.SendRateBurst = int(opts.SendRateLimit)
		if opts.SendRateBurst < 1 {
			opts.SendRateBurst = 1
		}
	}
	return &Relay{
		registry: registry,
		store:    store,
		opts:     opts,
	}
}

// Connect registers the session, announces the new presence, and flushes
// any backlog stored while the user was offline. Backlog precedes any new
// live traffic for this session.
func (r *Relay) Connect(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.SendRateLimit > 0 {
		s.SetLimiter(rate.NewLimiter(rate.Limit(r.opts.SendRateLimit), r.opts.SendRateBurst))
	}

	r.registry.Register(s)
	connectedSessions.Set(float64(r.registry.Count()))
	r.broadcastPresence()
	r.flushBacklog(s)
}

// Disconnect releases whatever the connection holds. Connections that never
// joined unregister as a no-op; a replaced connection's late disconnect
// leaves its successor registered and the presence list untouched.
func (r *Relay) Disconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, removed := r.registry.Unregister(connectionID)
	connectedSessions.Set(float64(r.registry.Count()))
	if removed {
		r.broadcastPresence()
	}
}

// Shutdown closes every live session. In-flight handlers finish first
// because Shutdown waits on the same lock.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry.CloseAll("server shutting down")
	connectedSessions.Set(0)
	slog.Info("Relay shut down")
}

// OnlineUsers returns the sorted usernames of all connected sessions.
func (r *Relay) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Usernames()
}

// ConnectedCount returns the number of live sessions.
func (r *Relay) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Count()
}

// History returns the stored conversation between two users in send order.
func (r *Relay) History(userA, userB string) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.History(userA, userB)
}

// emit encodes a payload and queues it on the session. Saturated queues drop
// the event with a log line; message delivery has its own bookkeeping in the
// router and never goes through here.
func (r *Relay) emit(s *session.Session, eventType string, payload interface{}) {
	env, err := event.New(eventType, payload)
	if err != nil {
		slog.Error("Failed to encode event", "error", err, "type", eventType)
		return
	}
	if !s.Send(env) {
		slog.Warn("Session queue saturated, event dropped", "username", s.Username, "type", eventType)
	}
}
