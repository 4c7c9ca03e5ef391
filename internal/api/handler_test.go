//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pindrop-app/relay/internal/conversation"
	"github.com/pindrop-app/relay/internal/event"
	"github.com/pindrop-app/relay/internal/relay"
	"github.com/pindrop-app/relay/internal/session"
)

func newTestRouter(t *testing.T) (*relay.Relay, http.Handler) {
	t.Helper()
	rly := relay.New(session.NewRegistry(), conversation.NewStore(), relay.Options{})
	r := chi.NewRouter()
	NewHandler(rly).RegisterRoutes(r)
	return rly, r
}

func connect(t *testing.T, rly *relay.Relay, username string) *session.Session {
	t.Helper()
	s := session.New(username, "conn-"+username, true, make(chan event.Envelope, 64))
	rly.Connect(s)
	return s
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "bad input")

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
	body := decodeBody(t, w)
	if body["error"] != "bad input" {
		t.Errorf("Expected error message, got %v", body["error"])
	}
}

func TestHealth(t *testing.T) {
	rly, router := newTestRouter(t)
	connect(t, rly, "alice")

	w := get(t, router, "/health")
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["connectedUsers"] != float64(1) {
		t.Errorf("Expected 1 connected user, got %v", body["connectedUsers"])
	}
	ts, _ := body["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("Expected RFC3339 timestamp, got %q", ts)
	}
}

func TestOnlineUsers(t *testing.T) {
	rly, router := newTestRouter(t)
	connect(t, rly, "bob")
	connect(t, rly, "alice")

	body := decodeBody(t, get(t, router, "/users/online"))
	users, ok := body["users"].([]interface{})
	if !ok {
		t.Fatalf("Expected a users array, got %v", body["users"])
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("Expected sorted [alice bob], got %v", users)
	}
}

func TestOnlineUsersEmpty(t *testing.T) {
	_, router := newTestRouter(t)

	body := decodeBody(t, get(t, router, "/users/online"))
	users, ok := body["users"].([]interface{})
	if !ok {
		t.Fatalf("Expected a users array, got %v", body["users"])
	}
	if len(users) != 0 {
		t.Errorf("Expected no users, got %v", users)
	}
}

func TestConversationHistory(t *testing.T) {
	rly, router := newTestRouter(t)
	alice := connect(t, rly, "alice")
	rly.Send(alice, "bob", "first", "t1")
	rly.Send(alice, "bob", "second", "t2")

	// Parameter order must not matter.
	body := decodeBody(t, get(t, router, "/conversations/bob/alice"))
	if body["conversation"] != "alice:bob" {
		t.Errorf("Expected conversation alice:bob, got %v", body["conversation"])
	}
	if body["total"] != float64(2) {
		t.Errorf("Expected total 2, got %v", body["total"])
	}
	messages, ok := body["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %v", body["messages"])
	}
	first, _ := messages[0].(map[string]interface{})
	if first["message"] != "first" || first["from"] != "alice" {
		t.Errorf("Expected first message from alice, got %v", first)
	}
}

func TestConversationHistoryEmpty(t *testing.T) {
	_, router := newTestRouter(t)

	body := decodeBody(t, get(t, router, "/conversations/alice/bob"))
	if body["total"] != float64(0) {
		t.Errorf("Expected total 0, got %v", body["total"])
	}
	messages, ok := body["messages"].([]interface{})
	if !ok {
		t.Fatalf("Expected a messages array, got %v", body["messages"])
	}
	if len(messages) != 0 {
		t.Errorf("Expected no messages, got %v", messages)
	}
}

func TestConversationHistoryMissingUser(t *testing.T) {
	rly := relay.New(session.NewRegistry(), conversation.NewStore(), relay.Options{})
	h := NewHandler(rly)

	// Direct invocation without router context leaves the params empty.
	req := httptest.NewRequest(http.MethodGet, "/conversations//", nil)
	w := httptest.NewRecorder()
	h.ConversationHistory(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}
