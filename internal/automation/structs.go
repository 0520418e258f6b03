package automation

import "time"

// Contact metadata marking a chat already handed off for exhausting its quota.
const (
	QuotaStatusKey      = "bot:chatgpt:status"
	QuotaStatusExceeded = "too_many_messages"
)

// Turn outcomes, used as log fields and metric labels.
const (
	OutcomeReplied       = "replied"
	OutcomeIneligible    = "ineligible"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeSendFailed    = "send_failed"
	OutcomeError         = "error"
	OutcomePanic         = "panic"
)

// Event types broadcast to live feed subscribers.
const (
	EventTurn    = "turn"
	EventHandoff = "handoff"
)

// TurnEvent summarises one processed turn for the live feed.
type TurnEvent struct {
	Turn     string    `json:"turn"`
	Chat     string    `json:"chat"`
	Outcome  string    `json:"outcome"`
	Reason   string    `json:"reason,omitempty"`
	Category string    `json:"category,omitempty"`
	Step     string    `json:"step,omitempty"`
	Waiting  string    `json:"waiting,omitempty"`
	WaID     string    `json:"waId,omitempty"`
	At       time.Time `json:"at"`
}
