package store

import (
	"context"
	"sync"

	"whatsapp-concierge/internal/domain"
)

// MemoryStore keeps everything in process memory. Values are copied in and out
// so callers never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	states  map[string]domain.ChatState
	stats   map[string]domain.Stat
	history map[string][]domain.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  make(map[string]domain.ChatState),
		stats:   make(map[string]domain.Stat),
		history: make(map[string][]domain.HistoryEntry),
	}
}

func (m *MemoryStore) GetState(_ context.Context, chatID string) (*domain.ChatState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneState(s), nil
}

func (m *MemoryStore) SaveState(_ context.Context, chatID string, state *domain.ChatState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[chatID] = *cloneState(*state)
	return nil
}

func (m *MemoryStore) DeleteState(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
	return nil
}

func (m *MemoryStore) GetStat(_ context.Context, chatID string) (*domain.Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) SaveStat(_ context.Context, chatID string, stat *domain.Stat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[chatID] = *stat
	return nil
}

func (m *MemoryStore) AppendHistory(_ context.Context, chatID string, entry domain.HistoryEntry, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[chatID] = trimHistory(append(m.history[chatID], entry), limit)
	return nil
}

func (m *MemoryStore) History(_ context.Context, chatID string) ([]domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.HistoryEntry(nil), m.history[chatID]...), nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneState(s domain.ChatState) *domain.ChatState {
	out := s
	if s.Quiz != nil {
		q := *s.Quiz
		q.Answers = append([]string(nil), s.Quiz.Answers...)
		out.Quiz = &q
	}
	if s.Intro != nil {
		intro := *s.Intro
		out.Intro = &intro
	}
	return &out
}

func trimHistory(entries []domain.HistoryEntry, limit int) []domain.HistoryEntry {
	if limit > 0 && len(entries) > limit {
		return append([]domain.HistoryEntry(nil), entries[len(entries)-limit:]...)
	}
	return entries
}
