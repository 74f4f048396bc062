// Package memory provides an in-memory implementation of
// transport.ConversationStore for testing and lightweight deployments.
// Transcripts are stored in memory and lost when the process restarts.
// Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"log/slog"
	"sync"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/storage"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// entry holds one conversation's transcript and its metadata.
type entry struct {
	messages []api.Message
	tenantID string
	lruElem  *list.Element // position in LRU list
}

// Store is an in-memory ConversationStore with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently written conversation
// is evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Transcript returns a copy of the stored messages for a conversation.
// Returns ErrNotFound if the conversation has no transcript. Scoped by
// tenant when a tenant is present in the context.
func (s *Store) Transcript(ctx context.Context, conversationID string) ([]api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[conversationID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	tenantID := storage.GetTenant(ctx)
	if tenantID != "" && e.tenantID != tenantID {
		return nil, storage.ErrNotFound
	}

	// Copy so callers never alias the slice a concurrent append grows.
	out := make([]api.Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

// AppendMessages appends messages to a conversation's transcript,
// creating the transcript if absent and trimming the oldest messages in
// pairs beyond maxMessages. Returns ErrConflict if the conversation ID
// belongs to another tenant.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, maxMessages int, messages ...api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenantID := storage.GetTenant(ctx)

	if e, ok := s.entries[conversationID]; ok {
		if tenantID != "" && e.tenantID != tenantID {
			return storage.ErrConflict
		}
		e.messages = storage.TrimTranscript(append(e.messages, messages...), maxMessages)
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(conversationID)
	s.entries[conversationID] = &entry{
		messages: storage.TrimTranscript(messages, maxMessages),
		tenantID: tenantID,
		lruElem:  elem,
	}

	return nil
}

// DeleteConversation removes a conversation's transcript. Returns
// ErrNotFound if no transcript exists for the conversation.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[conversationID]
	if !ok {
		return storage.ErrNotFound
	}

	tenantID := storage.GetTenant(ctx)
	if tenantID != "" && e.tenantID != tenantID {
		return storage.ErrNotFound
	}

	s.lruList.Remove(e.lruElem)
	delete(s.entries, conversationID)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of conversations currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictOldest removes the least recently written conversation.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)

	slog.Warn("evicted least recently used conversation transcript",
		"conversation_id", id,
		"max_size", s.maxSize,
	)
}
