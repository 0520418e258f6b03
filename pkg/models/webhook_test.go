package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPayloadDecode(t *testing.T) {
	raw := `{
		"id": "evt-1",
		"event": "message:in:new",
		"device": {"id": "dev-1", "phone": "+34611111111"},
		"data": {
			"body": "hello",
			"fromNumber": "+34600000001",
			"chat": {
				"id": "34600000001@c.us",
				"fromNumber": "+34600000001",
				"type": "chat",
				"labels": ["vip"],
				"contact": {"phone": "+34600000001", "metadata": [{"key": "bot:chatgpt:status", "value": "too_many_messages"}]},
				"owner": {"agent": "agent-7"}
			}
		}
	}`

	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.NotNil(t, p.Data)
	require.NotNil(t, p.Device)

	assert.Equal(t, EventMessageInNew, p.Event)
	assert.Equal(t, "+34611111111", p.Device.Phone)
	assert.Equal(t, []string{"vip"}, p.Data.Chat.Labels)
	assert.Equal(t, "agent-7", p.Data.Chat.Owner.Agent)

	v, ok := p.Data.Chat.Contact.MetadataValue("bot:chatgpt:status")
	assert.True(t, ok)
	assert.Equal(t, "too_many_messages", v)
}

func TestInboundEventIdentifiers(t *testing.T) {
	ev := InboundEvent{Chat: Chat{Contact: Contact{Phone: "+34600000001"}}}
	assert.Equal(t, "+34600000001", ev.ChatID())
	assert.Equal(t, "+34600000001", ev.ReplyPhone())
	assert.Equal(t, "+34600000001", ev.GatewayChatID())

	ev.Chat.FromNumber = "34600000001"
	ev.Chat.ID = "34600000001@c.us"
	assert.Equal(t, "34600000001", ev.ChatID())
	assert.Equal(t, "34600000001@c.us", ev.GatewayChatID())
}

func TestNewInboundEventFallsBackToConfiguredDevice(t *testing.T) {
	p := WebhookPayload{
		Event: EventMessageInNew,
		Data: &InboundMessage{
			ID:         "wa-in-1",
			Type:       MessageTypeAudio,
			Body:       "hi",
			FromNumber: "+34600000001",
			Chat:       Chat{ID: "34600000001@c.us", Type: ChatTypeDirect},
		},
	}

	ev := NewInboundEvent(p, Device{ID: "configured", Phone: "+34611111111"})
	assert.Equal(t, "configured", ev.Device.ID)
	assert.Equal(t, "wa-in-1", ev.MessageID)
	assert.Equal(t, MessageTypeAudio, ev.Type)
	assert.Equal(t, "+34600000001", ev.ChatID())

	p.Device = &Device{ID: "from-payload", Phone: "+34622222222"}
	ev = NewInboundEvent(p, Device{ID: "configured"})
	assert.Equal(t, "from-payload", ev.Device.ID)
}
