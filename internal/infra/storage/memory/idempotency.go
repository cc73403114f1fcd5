package memory

import (
	"context"
	"sync"
	"time"

	"staybook/internal/app/middleware"
)

type idempotencyItem struct {
	rec       middleware.IdempotencyRecord
	expiresAt time.Time
}

// IdempotencyStore stores results in memory until their ttl passes.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]idempotencyItem
	now   func() time.Time
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]idempotencyItem), now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return middleware.IdempotencyRecord{}, false, nil
	}
	return item.rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord, ttl time.Duration) error {
	item := idempotencyItem{rec: rec}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = item
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

// Inbox remembers processed message ids per consumer.
type Inbox struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]struct{})}
}

func (i *Inbox) Processed(ctx context.Context, eventID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.seen[eventID]
	return ok, nil
}

// Mark records eventID. Marking twice is a no-op.
func (i *Inbox) Mark(ctx context.Context, eventID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[eventID] = struct{}{}
	return nil
}
