package session

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry maps usernames to live sessions and connections back to
// usernames. The forward map holds at most one session per username; the
// reverse map is per connection, so a replaced connection's late disconnect
// cannot evict its successor.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
	byConn map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Session),
		byConn: make(map[string]string),
	}
}

// Register inserts or overwrites the mapping for the session's username.
// A previous session for the same username is closed (last-connect-wins); a
// connection re-joining under a new username drops its old binding first.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevName, ok := r.byConn[s.ConnectionID]; ok && prevName != s.Username {
		if prev, ok := r.byUser[prevName]; ok && prev.ConnectionID == s.ConnectionID {
			delete(r.byUser, prevName)
			slog.Info("Session rebound to new username", "old_username", prevName, "username", s.Username, "connection_id", s.ConnectionID)
		}
	}

	if existing, ok := r.byUser[s.Username]; ok && existing.ConnectionID != s.ConnectionID {
		existing.Close("session replaced")
		slog.Info("Session replaced", "username", s.Username, "old_connection", existing.ConnectionID, "connection_id", s.ConnectionID)
	}

	r.byUser[s.Username] = s
	r.byConn[s.ConnectionID] = s.Username
	slog.Info("Session registered", "username", s.Username, "connection_id", s.ConnectionID, "authenticated", s.IsAuthenticated)
}

// Lookup returns the live session for a username, if any.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[username]
	return s, ok
}

// Unregister resolves the connection to its username and removes the
// binding. The forward entry is dropped only while it still points at this
// connection, so a replaced session's late disconnect leaves its successor
// untouched. The second return reports whether the online set changed.
func (r *Registry) Unregister(connectionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connectionID]
	if !ok {
		slog.Info("Connection closed without a joined session", "connection_id", connectionID)
		return "", false
	}
	delete(r.byConn, connectionID)

	if current, ok := r.byUser[username]; ok && current.ConnectionID == connectionID {
		delete(r.byUser, username)
		slog.Info("Session unregistered", "username", username, "connection_id", connectionID)
		return username, true
	}

	slog.Debug("Stale connection unregistered", "username", username, "connection_id", connectionID)
	return username, false
}

// Usernames returns the sorted list of currently registered usernames.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byUser))
	for name := range r.byUser {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Sessions returns a snapshot of every live session.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.byUser))
	for _, s := range r.byUser {
		sessions = append(sessions, s)
	}
	return sessions
}

// CloseAll force-closes every live session and clears the registry.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for username, s := range r.byUser {
		s.Close(reason)
		slog.Info("Session closed", "username", username, "reason", reason)
	}
	r.byUser = make(map[string]*Session)
	r.byConn = make(map[string]string)
}
