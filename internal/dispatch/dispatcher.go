// Package dispatch sends one reply through the gateway and performs the
// bookkeeping that follows a successful send.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"whatsapp-concierge/internal/domain"
	"whatsapp-concierge/internal/media"
	"whatsapp-concierge/internal/metrics"
	"whatsapp-concierge/internal/store"
	"whatsapp-concierge/internal/whatsapp"
	"whatsapp-concierge/pkg/logging"
	"whatsapp-concierge/pkg/models"
)

const presenceTimeout = 10 * time.Second

// Gateway is the part of the messaging gateway the dispatcher uses.
type Gateway interface {
	SendMessage(ctx context.Context, msg whatsapp.OutboundMessage) (*whatsapp.SentMessage, error)
	SendTypingState(ctx context.Context, deviceID, phone, action string) error
	UpdateChatLabels(ctx context.Context, deviceID, chatID string, labels []string) error
	UpdateChatMetadata(ctx context.Context, deviceID, phone string, metadata []models.MetadataEntry) error
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// Counter records successful sends against the chat quota.
type Counter interface {
	Increment(ctx context.Context, chatID string) (domain.Stat, error)
}

type Config struct {
	AudioOutput   bool
	AudioOnly     bool
	MaxAudioChars int
	Voice         string
	VoiceSpeed    float64
	WebhookURL    string
	HistoryLimit  int
	Labels        []string
	Metadata      []models.MetadataEntry
}

type Dispatcher struct {
	gateway Gateway
	synth   Synthesizer
	files   *media.Store
	counter Counter
	history store.HistoryStore
	cfg     Config
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

type Deps struct {
	Gateway Gateway
	// Synth and Files may be nil when audio output is off.
	Synth   Synthesizer
	Files   *media.Store
	Counter Counter
	History store.HistoryStore
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

func New(deps Deps, cfg Config) *Dispatcher {
	if deps.Gateway == nil || deps.Counter == nil || deps.History == nil {
		panic("dispatch: gateway, counter and history are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Dispatcher{
		gateway: deps.Gateway,
		synth:   deps.Synth,
		files:   deps.Files,
		counter: deps.Counter,
		history: deps.History,
		cfg:     cfg,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     time.Now,
	}
}

// Dispatch sends reply to the chat of ev. Only the send itself can fail the
// call; bookkeeping errors after it are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.InboundEvent, reply OutboundReply) (*whatsapp.SentMessage, error) {
	logger := d.logger.With("chat", ev.ChatID())

	msg := whatsapp.OutboundMessage{
		Phone:     ev.ReplyPhone(),
		Device:    ev.Device.ID,
		Reference: whatsapp.Reference,
	}

	var (
		body   string
		kind   = "text"
		fileID string
	)
	switch r := reply.(type) {
	case TextReply:
		body = r.Text
		msg.Message = r.Text
		if d.audioEligible(r) {
			d.presence(ctx, ev, whatsapp.PresenceRecording)
			id, err := d.synthesize(ctx, r.Text)
			if err != nil {
				logger.Warn("speech synthesis failed, replying with text", "error", err)
				break
			}
			fileID, kind = id, "audio"
		} else {
			d.presence(ctx, ev, whatsapp.PresenceTyping)
		}
	case AudioReply:
		body = r.Transcript
		if d.files == nil {
			return nil, errors.New("dispatch: audio reply without a media store")
		}
		d.presence(ctx, ev, whatsapp.PresenceRecording)
		id, err := d.files.Save(r.Audio)
		if err != nil {
			return nil, err
		}
		fileID, kind = id, "audio"
	default:
		return nil, fmt.Errorf("dispatch: unsupported reply %T", reply)
	}

	if fileID != "" {
		fileURL, err := media.FileURL(d.cfg.WebhookURL, fileID)
		if err != nil {
			d.discard(logger, fileID)
			return nil, err
		}
		msg.Message = ""
		msg.Media = &whatsapp.Media{URL: fileURL, Format: "ptt"}
	}

	sent, err := d.gateway.SendMessage(ctx, msg)
	if err != nil {
		d.metrics.ObserveReply(kind, "failed")
		if fileID != "" {
			d.discard(logger, fileID)
		}
		return nil, fmt.Errorf("dispatch: send message: %w", err)
	}
	d.metrics.ObserveReply(kind, "sent")

	d.afterSend(ctx, logger, ev, sent, body)
	return sent, nil
}

func (d *Dispatcher) audioEligible(r TextReply) bool {
	if !d.cfg.AudioOutput || r.TextOnly || d.synth == nil || d.files == nil {
		return false
	}
	if utf8.RuneCountInString(r.Text) > d.cfg.MaxAudioChars {
		return false
	}
	return r.Voice || d.cfg.AudioOnly
}

func (d *Dispatcher) synthesize(ctx context.Context, text string) (string, error) {
	audio, err := d.synth.Synthesize(ctx, text, d.cfg.Voice, d.cfg.VoiceSpeed)
	if err != nil {
		return "", err
	}
	return d.files.Save(audio)
}

// presence fires the chat state update in the background; it must never delay the reply.
func (d *Dispatcher) presence(ctx context.Context, ev models.InboundEvent, action string) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), presenceTimeout)
	go func() {
		defer cancel()
		if err := d.gateway.SendTypingState(bg, ev.Device.ID, ev.ReplyPhone(), action); err != nil {
			d.logger.Debug("presence update failed", "chat", ev.ChatID(), "action", action, "error", err)
		}
	}()
}

func (d *Dispatcher) afterSend(ctx context.Context, logger *logging.Logger, ev models.InboundEvent, sent *whatsapp.SentMessage, body string) {
	date := sent.CreatedAt
	if date.IsZero() {
		date = d.now()
	}
	entry := domain.HistoryEntry{ID: sent.WaID, Flow: domain.FlowOutbound, Date: date, Body: body}
	if err := d.history.AppendHistory(ctx, ev.ChatID(), entry, d.cfg.HistoryLimit); err != nil {
		logger.Warn("failed to record chat history", "error", err)
	}

	if _, err := d.counter.Increment(ctx, ev.ChatID()); err != nil {
		logger.Warn("failed to increment chat quota", "error", err)
	}

	if labels := intersect(d.cfg.Labels, ev.Chat.Labels); len(labels) > 0 {
		if err := d.gateway.UpdateChatLabels(ctx, ev.Device.ID, ev.GatewayChatID(), labels); err != nil {
			logger.Warn("failed to update chat labels", "error", err)
		}
	}

	if metadata := completeEntries(d.cfg.Metadata); len(metadata) > 0 {
		if err := d.gateway.UpdateChatMetadata(ctx, ev.Device.ID, ev.ReplyPhone(), metadata); err != nil {
			logger.Warn("failed to update chat metadata", "error", err)
		}
	}
}

func (d *Dispatcher) discard(logger *logging.Logger, id string) {
	if err := d.files.Discard(id); err != nil {
		logger.Warn("failed to remove unsent audio", "file", id, "error", err)
	}
}

// intersect keeps the configured labels the chat already carries.
func intersect(configured, chat []string) []string {
	var out []string
	for _, label := range configured {
		for _, have := range chat {
			if label == have {
				out = append(out, label)
				break
			}
		}
	}
	return out
}

func completeEntries(entries []models.MetadataEntry) []models.MetadataEntry {
	var out []models.MetadataEntry
	for _, e := range entries {
		if e.Key != "" && e.Value != "" {
			out = append(out, e)
		}
	}
	return out
}
