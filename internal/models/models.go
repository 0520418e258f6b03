package models

import (
	"time"
)

// Message is one history entry of a chat
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WaID      string    `gorm:"type:varchar(100);index" json:"wa_id"`
	ChatID    string    `gorm:"type:varchar(50);index;not null" json:"chat_id"`
	Flow      string    `gorm:"type:varchar(20)" json:"flow"` // inbound, outbound
	Content   string    `gorm:"type:text" json:"content"`
	SentAt    time.Time `json:"sent_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// ConversationSession is the dialogue state of a chat, stored as JSON
type ConversationSession struct {
	ChatID    string    `gorm:"primaryKey;type:varchar(50)" json:"chat_id"`
	Context   string    `gorm:"type:text" json:"context"` // JSON encoded state
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

// ChatStat is the rolling quota counter of a chat
type ChatStat struct {
	ChatID       string    `gorm:"primaryKey;type:varchar(50)" json:"chat_id"`
	MessageCount int       `gorm:"not null;default:0" json:"message_count"`
	WindowStart  time.Time `gorm:"not null" json:"window_start"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChatStat) TableName() string {
	return "chat_stats"
}

// All lists every model for migrations.
func All() []any {
	return []any{&Message{}, &ConversationSession{}, &ChatStat{}}
}
