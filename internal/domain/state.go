package domain

import "time"

// PromptKind names the free-text prompt a chat is currently answering.
type PromptKind string

const (
	PromptNone                 PromptKind = ""
	PromptIntroduction         PromptKind = "introduction"
	PromptMessage              PromptKind = "message"
	PromptSchedule             PromptKind = "schedule"
	PromptMemory               PromptKind = "memory"
	PromptOliveMessage         PromptKind = "oliveMessage"
	PromptOliveResponseConfirm PromptKind = "oliveResponseConfirm"
	PromptQuizAnswer           PromptKind = "quizAnswer"
)

// FreeText reports whether answers to this prompt must pass the message validator.
func (k PromptKind) FreeText() bool {
	switch k {
	case PromptMessage, PromptMemory, PromptOliveMessage:
		return true
	}
	return false
}

// Introduction holds the fields a stranger supplies before using the menu.
type Introduction struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// QuizProgress tracks an active quiz.
type QuizProgress struct {
	Index   int      `json:"index"`
	Answers []string `json:"answers"`
}

// ChatState is the per-chat dialogue state. WaitingFor is the tag; Quiz is set
// only while WaitingFor is PromptQuizAnswer and PendingMessage only while it is
// PromptOliveResponseConfirm. IntroPrompted records that a stranger was asked
// to introduce themselves and outlives later prompts. A missing ChatState
// means "default menu".
type ChatState struct {
	WaitingFor     PromptKind    `json:"waitingFor,omitempty"`
	Quiz           *QuizProgress `json:"quiz,omitempty"`
	Introduced     bool          `json:"introduced,omitempty"`
	IntroPrompted  bool          `json:"introPrompted,omitempty"`
	Intro          *Introduction `json:"intro,omitempty"`
	PendingMessage string        `json:"pendingMessage,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Await switches the state to wait for kind, dropping payload that belongs to other prompts.
func (s *ChatState) Await(kind PromptKind) {
	s.WaitingFor = kind
	if kind != PromptQuizAnswer {
		s.Quiz = nil
	}
	if kind != PromptOliveResponseConfirm {
		s.PendingMessage = ""
	}
}

// Clear drops the active prompt but keeps introduction data.
func (s *ChatState) Clear() {
	s.Await(PromptNone)
}

// Stat is the rolling message counter for one chat.
type Stat struct {
	MessageCount int       `json:"messageCount"`
	WindowStart  time.Time `json:"windowStart"`
}

// HistoryFlow is the direction of a history entry.
type HistoryFlow string

const (
	FlowInbound  HistoryFlow = "inbound"
	FlowOutbound HistoryFlow = "outbound"
)

// HistoryEntry is one message recorded for a chat, keyed by the gateway message id.
type HistoryEntry struct {
	ID   string      `json:"id"`
	Flow HistoryFlow `json:"flow"`
	Date time.Time   `json:"date"`
	Body string      `json:"body"`
}
