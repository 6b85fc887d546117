package state

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[Key]*BookingSession
	locker   KeyedLocker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Key]*BookingSession)}
}

func (s *MemoryStore) Lock(ctx context.Context, key Key) (func(), error) {
	if !key.Valid() {
		return nil, ErrInvalidSession
	}
	return s.locker.Lock(ctx, key.String())
}

func (s *MemoryStore) Load(ctx context.Context, key Key) (*BookingSession, error) {
	if !key.Valid() {
		return nil, ErrInvalidSession
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, st *BookingSession) error {
	if st == nil {
		return ErrNilSessionState
	}
	if !st.Key().Valid() {
		return ErrInvalidSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := st.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.sessions[st.Key()] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	if !key.Valid() {
		return ErrInvalidSession
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}
