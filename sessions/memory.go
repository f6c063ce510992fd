package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/giygas/ems-interactions-api/interfaces"
)

// Compile-time check to ensure MemoryStore implements SessionStore
var _ interfaces.SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. Each write restarts the TTL.
// Writes are serialised by mu so a read-modify-write never loses an update
// and a write never revives a deleted session.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryStore creates a store whose sessions expire after ttl,
// purging expired entries every 10 minutes
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, 10*time.Minute),
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context) (*interfaces.Session, error) {
	s := newSession(m.now())
	m.cache.Set(s.ID, clone(s), cache.DefaultExpiration)
	return s, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*interfaces.Session, error) {
	if x, found := m.cache.Get(id); found {
		return clone(x.(*interfaces.Session)), nil
	}
	return nil, ErrSessionNotFound
}

func (m *MemoryStore) Save(ctx context.Context, session *interfaces.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.cache.Get(session.ID); !found {
		return ErrSessionNotFound
	}
	session.UpdatedAt = m.now()
	m.cache.Set(session.ID, clone(session), cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*interfaces.Session) error) (*interfaces.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	x, found := m.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}

	s := clone(x.(*interfaces.Session))
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.now()
	m.cache.Set(id, clone(s), cache.DefaultExpiration)
	return s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.cache.Get(id); !found {
		return ErrSessionNotFound
	}
	m.cache.Delete(id)
	return nil
}

// Count returns the number of live sessions; expired entries not yet purged are included
func (m *MemoryStore) Count(ctx context.Context) int {
	return m.cache.ItemCount()
}
