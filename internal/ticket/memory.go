package ticket

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	ticket  string
	userID  uint
	expires time.Time
}

// MemoryStore is a process-local, capacity-bounded ticket store. When full,
// the oldest outstanding ticket is evicted to make room.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	now      func() time.Time
	entries  map[string]*list.Element
	order    *list.List // oldest first
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (m *MemoryStore) Put(_ context.Context, ticket string, userID uint, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[ticket]; exists {
		return ErrTicketCollision
	}
	now := m.now()
	m.evictExpiredLocked(now)
	for m.order.Len() >= m.capacity {
		m.removeLocked(m.order.Front())
	}
	el := m.order.PushBack(&memEntry{ticket: ticket, userID: userID, expires: now.Add(ttl)})
	m.entries[ticket] = el
	return nil
}

func (m *MemoryStore) Take(_ context.Context, ticket string) (uint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[ticket]
	if !ok {
		return 0, false, nil
	}
	m.removeLocked(el)
	e := el.Value.(*memEntry)
	if !m.now().Before(e.expires) {
		return 0, false, nil
	}
	return e.userID, true, nil
}

// Len reports outstanding tickets, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// evictExpiredLocked sweeps from the oldest end and stops at the first live
// ticket. Take re-checks expiry, so a stale entry behind it is harmless.
func (m *MemoryStore) evictExpiredLocked(now time.Time) {
	for el := m.order.Front(); el != nil; el = m.order.Front() {
		if now.Before(el.Value.(*memEntry).expires) {
			return
		}
		m.removeLocked(el)
	}
}

func (m *MemoryStore) removeLocked(el *list.Element) {
	e := el.Value.(*memEntry)
	delete(m.entries, e.ticket)
	m.order.Remove(el)
}
