// Package quota counts outbound messages per chat inside a rolling window.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-concierge/internal/domain"
	"whatsapp-concierge/internal/store"
)

// Tracker enforces the per-chat message limit. Callers serialize access per
// chat; the tracker itself does not lock.
type Tracker struct {
	stats  store.StatStore
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(stats store.StatStore, limit int, window time.Duration, opts ...Option) *Tracker {
	t := &Tracker{stats: stats, limit: limit, window: window, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Check reports whether the chat may receive another reply. A full counter
// whose window has elapsed is reset before answering.
func (t *Tracker) Check(ctx context.Context, chatID string) (bool, domain.Stat, error) {
	stat, err := t.load(ctx, chatID)
	if err != nil {
		return false, domain.Stat{}, err
	}
	if stat.MessageCount < t.limit {
		return true, stat, nil
	}
	now := t.now()
	if now.Sub(stat.WindowStart) >= t.window {
		stat = domain.Stat{MessageCount: 0, WindowStart: now}
		if err := t.stats.SaveStat(ctx, chatID, &stat); err != nil {
			return false, domain.Stat{}, fmt.Errorf("quota: reset %s: %w", chatID, err)
		}
		return true, stat, nil
	}
	return false, stat, nil
}

// Increment records one successful send.
func (t *Tracker) Increment(ctx context.Context, chatID string) (domain.Stat, error) {
	stat, err := t.load(ctx, chatID)
	if err != nil {
		return domain.Stat{}, err
	}
	stat.MessageCount++
	if err := t.stats.SaveStat(ctx, chatID, &stat); err != nil {
		return domain.Stat{}, fmt.Errorf("quota: increment %s: %w", chatID, err)
	}
	return stat, nil
}

func (t *Tracker) Limit() int { return t.limit }

func (t *Tracker) load(ctx context.Context, chatID string) (domain.Stat, error) {
	stat, err := t.stats.GetStat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		fresh := domain.Stat{WindowStart: t.now()}
		if err := t.stats.SaveStat(ctx, chatID, &fresh); err != nil {
			return domain.Stat{}, fmt.Errorf("quota: init %s: %w", chatID, err)
		}
		return fresh, nil
	}
	if err != nil {
		return domain.Stat{}, fmt.Errorf("quota: load %s: %w", chatID, err)
	}
	return *stat, nil
}
