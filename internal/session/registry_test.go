package session

import (
	"strconv"
	"testing"
	"time"

	"github.com/pindrop-app/relay/internal/event"
)

func newTestSession(username, connectionID string) *Session {
	return New(username, connectionID, true, make(chan event.Envelope, 16))
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	s := newTestSession("alice", "conn-1")

	r.Register(s)

	got, ok := r.Lookup("alice")
	if !ok {
		t.Fatal("Expected alice to be registered")
	}
	if got != s {
		t.Errorf("Expected session %v, got %v", s, got)
	}
	if r.Count() != 1 {
		t.Errorf("Expected count 1, got %d", r.Count())
	}
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("nobody"); ok {
		t.Error("Expected lookup of unknown username to miss")
	}
}

func TestLastConnectWins(t *testing.T) {
	r := NewRegistry()
	first := newTestSession("alice", "conn-1")
	second := newTestSession("alice", "conn-2")

	var closedReason string
	first.OnClose(func(reason string) { closedReason = reason })

	r.Register(first)
	r.Register(second)

	got, ok := r.Lookup("alice")
	if !ok || got != second {
		t.Fatalf("Expected the newer session, got %v", got)
	}
	if r.Count() != 1 {
		t.Errorf("Expected exactly one live session, got %d", r.Count())
	}
	if closedReason != "session replaced" {
		t.Errorf("Expected old session closed with %q, got %q", "session replaced", closedReason)
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestSession("alice", "conn-1"))

	username, removed := r.Unregister("conn-1")
	if username != "alice" || !removed {
		t.Errorf("Expected (alice, true), got (%s, %v)", username, removed)
	}
	if _, ok := r.Lookup("alice"); ok {
		t.Error("Expected alice to be gone after unregister")
	}
}

func TestUnregisterStaleConnection(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestSession("alice", "conn-1"))
	replacement := newTestSession("alice", "conn-2")
	r.Register(replacement)

	// The replaced connection disconnects late; the successor must survive.
	username, removed := r.Unregister("conn-1")
	if username != "alice" || removed {
		t.Errorf("Expected (alice, false), got (%s, %v)", username, removed)
	}

	got, ok := r.Lookup("alice")
	if !ok || got != replacement {
		t.Errorf("Expected replacement session to remain, got %v", got)
	}
}

func TestUnregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()

	username, removed := r.Unregister("never-joined")
	if username != "" || removed {
		t.Errorf("Expected no-op, got (%s, %v)", username, removed)
	}
}

func TestRegisterSameConnectionNewUsername(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestSession("alice", "conn-1"))
	r.Register(newTestSession("alice2", "conn-1"))

	if _, ok := r.Lookup("alice"); ok {
		t.Error("Expected old username binding to be dropped")
	}
	if _, ok := r.Lookup("alice2"); !ok {
		t.Error("Expected new username binding to exist")
	}
	if r.Count() != 1 {
		t.Errorf("Expected count 1, got %d", r.Count())
	}
}

func TestUsernamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestSession("carol", "conn-3"))
	r.Register(newTestSession("alice", "conn-1"))
	r.Register(newTestSession("bob", "conn-2"))

	got := r.Usernames()
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d usernames, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected usernames[%d]=%s, got %s", i, want[i], got[i])
		}
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry()
	closed := 0
	for i := 0; i < 3; i++ {
		s := newTestSession("user"+strconv.Itoa(i), "conn-"+strconv.Itoa(i))
		s.OnClose(func(string) { closed++ })
		r.Register(s)
	}

	r.CloseAll("server shutting down")

	if closed != 3 {
		t.Errorf("Expected 3 sessions closed, got %d", closed)
	}
	if r.Count() != 0 {
		t.Errorf("Expected empty registry, got %d sessions", r.Count())
	}
}

func TestSessionCloseOnce(t *testing.T) {
	s := newTestSession("alice", "conn-1")
	calls := 0
	s.OnClose(func(string) { calls++ })

	s.Close("first")
	s.Close("second")

	if calls != 1 {
		t.Errorf("Expected close hook to run once, got %d calls", calls)
	}
}

func TestSessionSendNonBlocking(t *testing.T) {
	out := make(chan event.Envelope, 1)
	s := New("alice", "conn-1", true, out)

	if !s.Send(event.Envelope{Type: "first"}) {
		t.Fatal("Expected first send to succeed")
	}
	if s.Send(event.Envelope{Type: "second"}) {
		t.Error("Expected send into a full queue to report failure")
	}

	got := <-out
	if got.Type != "first" {
		t.Errorf("Expected queued envelope %q, got %q", "first", got.Type)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	go func() {
		for i := 0; i < 1000; i++ {
			r.Register(newTestSession("user"+strconv.Itoa(i), "conn-"+strconv.Itoa(i)))
		}
	}()

	go func() {
		for i := 0; i < 1000; i++ {
			r.Lookup("user" + strconv.Itoa(i))
			r.Count()
		}
	}()

	time.Sleep(100 * time.Millisecond)
}
