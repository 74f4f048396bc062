// Package session tracks collaborator continuation tokens. Each
// conversation holds at most one token per collaborator; a token returned
// by a delegation replaces the stored one and is echoed on the next
// delegation to the same collaborator, so the collaborator can resume its
// own context across turns.
//
// The store is in-memory and bounded: when the conversation capacity is
// reached the least recently used conversation's tokens are dropped.
// Losing a token is safe, the next delegation simply starts a fresh
// collaborator session.
package session

import (
	"container/list"
	"log/slog"
	"sync"
)

// DefaultCapacity bounds the number of conversations tracked at once.
const DefaultCapacity = 1024

// Store maps (conversation, collaborator) to the collaborator's
// continuation token. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	capacity int
	convs    map[string]*entry
	lru      *list.List
}

// entry holds one conversation's tokens plus its LRU list element.
type entry struct {
	conversationID string
	tokens         map[string]string
	element        *list.Element
}

// NewStore creates a Store bounded to capacity conversations. A
// non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		convs:    make(map[string]*entry),
		lru:      list.New(),
	}
}

// Token returns the stored continuation token for the collaborator within
// the conversation. The conversation is marked as recently used.
func (s *Store) Token(conversationID, collaboratorID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.convs[conversationID]
	if !ok {
		return "", false
	}
	s.lru.MoveToFront(e.element)

	token, ok := e.tokens[collaboratorID]
	return token, ok
}

// SetToken stores the continuation token for the collaborator within the
// conversation, replacing any previous one. An empty token clears the
// stored value.
func (s *Store) SetToken(conversationID, collaboratorID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.convs[conversationID]
	if !ok {
		for len(s.convs) >= s.capacity {
			s.evictOldest()
		}
		e = &entry{
			conversationID: conversationID,
			tokens:         make(map[string]string),
		}
		e.element = s.lru.PushFront(e)
		s.convs[conversationID] = e
	} else {
		s.lru.MoveToFront(e.element)
	}

	if token == "" {
		delete(e.tokens, collaboratorID)
		return
	}
	e.tokens[collaboratorID] = token
}

// Forget drops all tokens for a conversation.
func (s *Store) Forget(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.convs[conversationID]
	if !ok {
		return
	}
	s.lru.Remove(e.element)
	delete(s.convs, conversationID)
}

// Len returns the number of tracked conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// evictOldest removes the least recently used conversation. Caller must
// hold the lock.
func (s *Store) evictOldest() {
	back := s.lru.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	s.lru.Remove(back)
	delete(s.convs, e.conversationID)

	slog.Warn("evicted session state for least recently used conversation",
		"conversation_id", e.conversationID,
		"capacity", s.capacity,
	)
}
