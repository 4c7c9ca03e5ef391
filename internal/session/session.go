// Package session tracks live user connections for the relay.
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pindrop-app/relay/internal/event"
)

// Session binds a username to a live transport connection. Its outbound
// queue is the user's private address: the relay enqueues envelopes here and
// the transport drains them into the socket.
type Session struct {
	Username        string
	ConnectionID    string
	IsAuthenticated bool
	JoinedAt        time.Time

	out       chan event.Envelope
	limiter   *rate.Limiter
	closeFn   func(reason string)
	closeOnce sync.Once
}

// New creates a session around an outbound queue owned by the transport.
func New(username, connectionID string, isAuthenticated bool, out chan event.Envelope) *Session {
	return &Session{
		Username:        username,
		ConnectionID:    connectionID,
		IsAuthenticated: isAuthenticated,
		JoinedAt:        time.Now(),
		out:             out,
	}
}

// Send enqueues an envelope without blocking. It reports false when the
// queue is saturated; the caller decides whether that counts as delivered.
func (s *Session) Send(env event.Envelope) bool {
	select {
	case s.out <- env:
		return true
	default:
		return false
	}
}

// OnClose installs the hook invoked when the session is closed. The
// transport uses it to shut the underlying socket.
func (s *Session) OnClose(fn func(reason string)) {
	s.closeFn = fn
}

// Close runs the close hook at most once.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeFn(reason)
		}
	})
}

// SetLimiter attaches a per-session send rate limiter.
func (s *Session) SetLimiter(l *rate.Limiter) {
	s.limiter = l
}

// AllowSend reports whether the session is within its send rate. Sessions
// without a limiter are never throttled.
func (s *Session) AllowSend() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
