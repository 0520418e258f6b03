// Package store persists per-chat dialogue state, quota counters and history.
package store

import (
	"context"
	"errors"

	"whatsapp-concierge/internal/domain"
)

// ErrNotFound is returned when no record exists for a chat.
var ErrNotFound = errors.New("store: not found")

// StateStore holds dialogue state keyed by chat identifier.
type StateStore interface {
	// GetState returns ErrNotFound when the chat has no state.
	GetState(ctx context.Context, chatID string) (*domain.ChatState, error)
	SaveState(ctx context.Context, chatID string, state *domain.ChatState) error
	// DeleteState is a no-op for unknown chats.
	DeleteState(ctx context.Context, chatID string) error
}

// StatStore holds quota counters keyed by chat identifier.
type StatStore interface {
	// GetStat returns ErrNotFound when the chat has no counter yet.
	GetStat(ctx context.Context, chatID string) (*domain.Stat, error)
	SaveStat(ctx context.Context, chatID string, stat *domain.Stat) error
}

// HistoryStore keeps the most recent messages of each chat.
type HistoryStore interface {
	// AppendHistory adds entry and trims the chat to the newest limit entries.
	AppendHistory(ctx context.Context, chatID string, entry domain.HistoryEntry, limit int) error
	// History returns entries oldest first.
	History(ctx context.Context, chatID string) ([]domain.HistoryEntry, error)
}

// Store is the full persistence surface used by the engine.
type Store interface {
	StateStore
	StatStore
	HistoryStore
	Close() error
}
