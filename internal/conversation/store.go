// Package conversation holds the in-memory message history for user pairs.
package conversation

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pindrop-app/relay/internal/domain"
)

// Base62 characters for message id suffixes.
const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// idSuffixLength is the number of random characters appended to the
// millisecond prefix of a message id.
const idSuffixLength = 9

// Store maps a conversation key to the ordered messages exchanged between
// two users. State lives for the process lifetime; nothing is evicted.
type Store struct {
	mu      sync.RWMutex
	buckets map[string][]*domain.Message
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		buckets: make(map[string][]*domain.Message),
	}
}

// Key derives the bucket key for an unordered pair of usernames. Both send
// directions map to the same key.
func Key(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// Append creates a new undelivered message and adds it to the pair's bucket.
// The record is returned by reference so the router can flip its delivery
// state in place.
func (s *Store) Append(from, to, body, timestamp string) *domain.Message {
	msg := &domain.Message{
		ID:        newMessageID(),
		From:      from,
		To:        to,
		Body:      body,
		Timestamp: timestamp,
	}

	key := Key(from, to)
	s.mu.Lock()
	s.buckets[key] = append(s.buckets[key], msg)
	s.mu.Unlock()

	return msg
}

// ListPending returns every undelivered message addressed to the given user,
// bucket by bucket in sorted key order, insertion order within each bucket.
// The result is recomputed from current state on every call.
func (s *Store) ListPending(username string) []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.buckets))
	for key := range s.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pending []*domain.Message
	for _, key := range keys {
		for _, msg := range s.buckets[key] {
			if msg.PendingFor(username) {
				pending = append(pending, msg)
			}
		}
	}
	return pending
}

// MarkRead sets the read flag on the matching message and returns it.
// Unknown keys and ids are a silent no-op.
func (s *Store) MarkRead(conversationKey, messageID string) (*domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.buckets[conversationKey] {
		if msg.ID == messageID {
			msg.Read = true
			return msg, true
		}
	}
	return nil, false
}

// History returns copies of every message exchanged between the pair, in
// insertion order. Pairs that never talked yield an empty slice.
func (s *Store) History(userA, userB string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.buckets[Key(userA, userB)]
	history := make([]domain.Message, 0, len(bucket))
	for _, msg := range bucket {
		history = append(history, *msg)
	}
	return history
}

// newMessageID builds an id from a millisecond prefix and a random base62
// suffix. Uniqueness is probabilistic, not cryptographic.
func newMessageID() string {
	suffix := make([]byte, idSuffixLength)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%d-%09d", time.Now().UnixMilli(), time.Now().UnixNano()%1e9)
	}
	for i, b := range suffix {
		suffix[i] = base62Chars[int(b)%len(base62Chars)]
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
