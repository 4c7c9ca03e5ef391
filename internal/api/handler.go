// Package api provides the HTTP side channel next to the websocket transport.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pindrop-app/relay/internal/conversation"
	"github.com/pindrop-app/relay/internal/relay"
)

// Handler serves read-only endpoints backed by relay state.
type Handler struct {
	relay *relay.Relay
}

// NewHandler creates a new Handler.
func NewHandler(rly *relay.Relay) *Handler {
	return &Handler{relay: rly}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes registers the side channel routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/users/online", h.OnlineUsers)
	r.Get("/conversations/{userA}/{userB}", h.ConversationHistory)
}

// Health reports liveness and the connected session count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"connectedUsers": h.relay.ConnectedCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// OnlineUsers returns the usernames with a live session, sorted.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"users": h.relay.OnlineUsers(),
	})
}

// ConversationHistory returns every stored message between two users,
// regardless of direction.
func (h *Handler) ConversationHistory(w http.ResponseWriter, r *http.Request) {
	userA := chi.URLParam(r, "userA")
	userB := chi.URLParam(r, "userB")
	if userA == "" || userB == "" {
		Error(w, http.StatusBadRequest, "both usernames are required")
		return
	}

	messages := h.relay.History(userA, userB)
	JSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conversation.Key(userA, userB),
		"messages":     messages,
		"total":        len(messages),
	})
}
