package models

// WebhookPayload is the envelope the messaging gateway posts to /webhook.
type WebhookPayload struct {
	ID     string          `json:"id"`
	Event  string          `json:"event"`
	Device *Device         `json:"device,omitempty"`
	Data   *InboundMessage `json:"data"`
}

// EventMessageInNew is the only webhook event that starts a conversational turn.
const EventMessageInNew = "message:in:new"

// Device is the gateway-side WhatsApp number the bot runs on.
type Device struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
}

// InboundMessage is an incoming chat message.
type InboundMessage struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Body       string `json:"body"`
	FromNumber string `json:"fromNumber"`
	Chat       Chat   `json:"chat"`
}

// Chat types.
const (
	ChatTypeDirect    = "chat"
	ChatTypeGroup     = "group"
	ChatTypeBroadcast = "channel"
)

// Chat and contact statuses used by the eligibility rules.
const (
	StatusBanned   = "banned"
	StatusBlocked  = "blocked"
	StatusArchived = "archived"
)

type Chat struct {
	ID         string     `json:"id"`
	FromNumber string     `json:"fromNumber"`
	Type       string     `json:"type"`
	Labels     []string   `json:"labels,omitempty"`
	Status     string     `json:"status,omitempty"`
	WaStatus   string     `json:"waStatus,omitempty"`
	Contact    Contact    `json:"contact"`
	Owner      *ChatOwner `json:"owner,omitempty"`
}

type Contact struct {
	Phone    string          `json:"phone"`
	Status   string          `json:"status,omitempty"`
	Metadata []MetadataEntry `json:"metadata,omitempty"`
}

// MetadataValue returns the value stored under key, if any.
func (c Contact) MetadataValue(key string) (string, bool) {
	for _, m := range c.Metadata {
		if m.Key == key {
			return m.Value, true
		}
	}
	return "", false
}

type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ChatOwner is set when a human agent has been assigned to the chat.
type ChatOwner struct {
	Agent string `json:"agent,omitempty"`
}

// MessageTypeAudio marks voice notes; replies to them prefer audio.
const MessageTypeAudio = "audio"

// InboundEvent is one turn's input after the webhook envelope has been unpacked.
type InboundEvent struct {
	MessageID string
	Type      string
	Chat      Chat
	Device    Device
	Body      string
}

// NewInboundEvent unpacks a message:in:new payload. device is used when the
// payload carries none.
func NewInboundEvent(p WebhookPayload, device Device) InboundEvent {
	if p.Device != nil && p.Device.ID != "" {
		device = *p.Device
	}
	ev := InboundEvent{Device: device}
	if p.Data != nil {
		ev.MessageID = p.Data.ID
		ev.Type = p.Data.Type
		ev.Chat = p.Data.Chat
		ev.Body = p.Data.Body
		if ev.Chat.FromNumber == "" {
			ev.Chat.FromNumber = p.Data.FromNumber
		}
	}
	return ev
}

// ChatID is the primary key for per-chat state: the sender's number.
func (e InboundEvent) ChatID() string {
	if e.Chat.FromNumber != "" {
		return e.Chat.FromNumber
	}
	return e.Chat.Contact.Phone
}

// ReplyPhone is the number replies are sent to.
func (e InboundEvent) ReplyPhone() string {
	if e.Chat.Contact.Phone != "" {
		return e.Chat.Contact.Phone
	}
	return e.Chat.FromNumber
}

// GatewayChatID is the gateway's own chat id, used for chat mutation calls.
func (e InboundEvent) GatewayChatID() string {
	if e.Chat.ID != "" {
		return e.Chat.ID
	}
	return e.ReplyPhone()
}
