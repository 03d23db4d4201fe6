package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	users     map[string]User
	turns     map[string][]Turn
	memories  map[string][]Memory
	protocols []Protocol
	seq       int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]User),
		turns:    make(map[string][]Turn),
		memories: make(map[string][]Memory),
	}
}

// nextTime yields strictly increasing timestamps so same-process appends keep
// their order even when the wall clock does not advance between calls.
func (s *InMemoryStore) nextTime() time.Time {
	s.seq++
	return time.Now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
}

func (s *InMemoryStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Metadata == nil {
		user.Metadata = map[string]any{}
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *InMemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, turn Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.nextTime()
	}
	s.turns[turn.UserID] = append(s.turns[turn.UserID], turn)
	return turn, nil
}

func (s *InMemoryStore) RecentByUser(_ context.Context, userID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[userID]
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Turn, 0, limit)
	for i := len(arr) - 1; i >= len(arr)-limit; i-- {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) TurnsBefore(_ context.Context, userID, cursor string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[userID]
	end := len(arr)
	if cursor != "" {
		end = 0
		for i, t := range arr {
			if t.ID == cursor {
				end = i
				break
			}
		}
	}
	if limit <= 0 || limit > end {
		limit = end
	}
	out := make([]Turn, 0, limit)
	for i := end - 1; i >= end-limit; i-- {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) CountUserAuthoredTurns(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.turns[userID] {
		if t.Role == RoleUser {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CountOnboardingTurns(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.turns[userID] {
		if t.IsOnboarding {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) InsertMemories(_ context.Context, memories []Memory) ([]Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Memory, 0, len(memories))
	for _, m := range memories {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.nextTime()
		}
		s.memories[m.UserID] = append(s.memories[m.UserID], m)
		out = append(out, m)
	}
	return out, nil
}

func (s *InMemoryStore) TopByUser(_ context.Context, userID string, limit int) ([]Memory, error) {
	s.mu.RLock()
	arr := make([]Memory, len(s.memories[userID]))
	copy(arr, s.memories[userID])
	s.mu.RUnlock()

	sort.SliceStable(arr, func(i, j int) bool {
		if arr[i].ImportanceScore != arr[j].ImportanceScore {
			return arr[i].ImportanceScore > arr[j].ImportanceScore
		}
		return arr[i].CreatedAt.After(arr[j].CreatedAt)
	})
	if limit > 0 && limit < len(arr) {
		arr = arr[:limit]
	}
	return arr, nil
}

func (s *InMemoryStore) ListProtocols(_ context.Context) ([]Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Protocol, len(s.protocols))
	copy(out, s.protocols)
	return out, nil
}

func (s *InMemoryStore) SeedProtocols(_ context.Context, protocols []Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range protocols {
		exists := false
		for _, have := range s.protocols {
			if have.Name == p.Name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		s.protocols = append(s.protocols, p)
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
