package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-concierge/internal/domain"
	"whatsapp-concierge/internal/models"
)

// GormStore keeps state in a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		panic("store: gorm db cannot be nil")
	}
	return &GormStore{db: db}
}

func (s *GormStore) GetState(ctx context.Context, chatID string) (*domain.ChatState, error) {
	var rec models.ConversationSession
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load state: %w", err)
	}
	var state domain.ChatState
	if err := json.Unmarshal([]byte(rec.Context), &state); err != nil {
		return nil, fmt.Errorf("store: decode state: %w", err)
	}
	return &state, nil
}

func (s *GormStore) SaveState(ctx context.Context, chatID string, state *domain.ChatState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encode state: %w", err)
	}
	rec := models.ConversationSession{ChatID: chatID, Context: string(data)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"context", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("store: save state: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteState(ctx context.Context, chatID string) error {
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.ConversationSession{}).Error; err != nil {
		return fmt.Errorf("store: delete state: %w", err)
	}
	return nil
}

func (s *GormStore) GetStat(ctx context.Context, chatID string) (*domain.Stat, error) {
	var rec models.ChatStat
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load stat: %w", err)
	}
	return &domain.Stat{MessageCount: rec.MessageCount, WindowStart: rec.WindowStart}, nil
}

func (s *GormStore) SaveStat(ctx context.Context, chatID string, stat *domain.Stat) error {
	rec := models.ChatStat{ChatID: chatID, MessageCount: stat.MessageCount, WindowStart: stat.WindowStart}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_count", "window_start", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("store: save stat: %w", err)
	}
	return nil
}

func (s *GormStore) AppendHistory(ctx context.Context, chatID string, entry domain.HistoryEntry, limit int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := models.Message{
			WaID:    entry.ID,
			ChatID:  chatID,
			Flow:    string(entry.Flow),
			Content: entry.Body,
			SentAt:  entry.Date,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("store: append history: %w", err)
		}
		if limit <= 0 {
			return nil
		}
		// Keep the newest `limit` rows of this chat.
		keep := tx.Model(&models.Message{}).Select("id").
			Where("chat_id = ?", chatID).Order("id DESC").Limit(limit)
		err := tx.Where("chat_id = ? AND id NOT IN (?)", chatID, keep).Delete(&models.Message{}).Error
		if err != nil {
			return fmt.Errorf("store: trim history: %w", err)
		}
		return nil
	})
}

func (s *GormStore) History(ctx context.Context, chatID string) ([]domain.HistoryEntry, error) {
	var recs []models.Message
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	entries := make([]domain.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, domain.HistoryEntry{
			ID:   r.WaID,
			Flow: domain.HistoryFlow(r.Flow),
			Date: r.SentAt,
			Body: r.Content,
		})
	}
	return entries, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
