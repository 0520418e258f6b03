package automation

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"whatsapp-concierge/internal/contacts"
	"whatsapp-concierge/internal/conversation"
	"whatsapp-concierge/internal/dispatch"
	"whatsapp-concierge/internal/domain"
	"whatsapp-concierge/internal/eligibility"
	"whatsapp-concierge/internal/metrics"
	"whatsapp-concierge/internal/quota"
	"whatsapp-concierge/internal/store"
	"whatsapp-concierge/internal/whatsapp"
	"whatsapp-concierge/pkg/logging"
	"whatsapp-concierge/pkg/models"
)

// Gateway is used for the quota hand-off.
type Gateway interface {
	AssignChatToAgent(ctx context.Context, deviceID, chatID, agent string, force bool) error
	UpdateChatMetadata(ctx context.Context, deviceID, phone string, metadata []models.MetadataEntry) error
}

type Replier interface {
	Dispatch(ctx context.Context, ev models.InboundEvent, reply dispatch.OutboundReply) (*whatsapp.SentMessage, error)
}

// Notifier receives a summary of every turn. The websocket hub implements it.
type Notifier interface {
	BroadcastEvent(eventType string, data any)
}

type Deps struct {
	Filter     *eligibility.Filter
	Classifier *contacts.Classifier
	Quota      *quota.Tracker
	Machine    *conversation.Machine
	Replier    Replier
	Gateway    Gateway
	History    store.HistoryStore
	Notifier   Notifier
	Metrics    *metrics.Metrics
	Logger     *logging.Logger
	// HistoryLimit caps the stored messages per chat.
	HistoryLimit int
}

// Engine runs one conversational turn per inbound message.
type Engine struct {
	deps  Deps
	locks *chatLocks
	now   func() time.Time
}

func NewEngine(deps Deps) *Engine {
	if deps.Filter == nil || deps.Classifier == nil || deps.Quota == nil || deps.Machine == nil ||
		deps.Replier == nil || deps.Gateway == nil || deps.History == nil {
		panic("automation: missing engine dependency")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{deps: deps, locks: newChatLocks(), now: time.Now}
}

// ProcessIncomingMessage runs a full turn. Turns for the same chat run one at
// a time; a panic inside a turn is logged and reported as an error.
func (e *Engine) ProcessIncomingMessage(ctx context.Context, ev models.InboundEvent) (err error) {
	start := e.now()
	summary := TurnEvent{Turn: uuid.NewString(), Chat: ev.ChatID(), Outcome: OutcomeError}
	logger := e.deps.Logger.With("chat", summary.Chat, "turn", summary.Turn)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn panicked", "panic", r, "stack", string(debug.Stack()))
			summary.Outcome = OutcomePanic
			err = fmt.Errorf("automation: turn panicked: %v", r)
		}
		summary.At = e.now()
		e.deps.Metrics.ObserveTurn(summary.Outcome, e.now().Sub(start).Seconds())
		if e.deps.Notifier != nil {
			e.deps.Notifier.BroadcastEvent(EventTurn, summary)
		}
	}()

	ok, reason := e.deps.Filter.CanReply(ev)
	summary.Reason = string(reason)
	if !ok {
		summary.Outcome = OutcomeIneligible
		logger.Debug("skipping ineligible chat", "reason", reason)
		return nil
	}

	unlock, err := e.locks.lock(ctx, summary.Chat)
	if err != nil {
		return fmt.Errorf("automation: wait for chat: %w", err)
	}
	defer unlock()

	e.recordInbound(ctx, logger, ev)

	allowed, stat, err := e.deps.Quota.Check(ctx, summary.Chat)
	if err != nil {
		logger.Error("quota check failed", "error", err)
		return err
	}
	if !allowed {
		summary.Outcome = OutcomeQuotaExceeded
		logger.Info("chat exceeded its message quota", "messages", stat.MessageCount, "window_start", stat.WindowStart)
		e.handoff(ctx, logger, ev)
		return nil
	}

	category := e.deps.Classifier.Classify(summary.Chat)
	summary.Category = string(category)
	logger = logger.With("category", category)

	out, err := e.deps.Machine.Handle(ctx, summary.Chat, category, ev.Body)
	if err != nil {
		logger.Error("dialogue step failed", "error", err)
		return err
	}
	summary.Step, summary.Waiting = string(out.Step), string(out.Waiting)

	reply := out.Reply
	if text, ok := reply.(dispatch.TextReply); ok && ev.Type == models.MessageTypeAudio {
		text.Voice = true
		reply = text
	}

	sent, err := e.deps.Replier.Dispatch(ctx, ev, reply)
	if err != nil {
		summary.Outcome = OutcomeSendFailed
		logger.Warn("reply not delivered", "error", err, "step", out.Step)
		return err
	}
	summary.Outcome = OutcomeReplied
	summary.WaID = sent.WaID
	logger.Info("turn completed", "step", out.Step, "waiting_for", out.Waiting, "wa_id", sent.WaID)
	return nil
}

func (e *Engine) recordInbound(ctx context.Context, logger *logging.Logger, ev models.InboundEvent) {
	entry := domain.HistoryEntry{ID: ev.MessageID, Flow: domain.FlowInbound, Date: e.now(), Body: ev.Body}
	if err := e.deps.History.AppendHistory(ctx, ev.ChatID(), entry, e.deps.HistoryLimit); err != nil {
		logger.Warn("failed to record inbound message", "error", err)
	}
}

// handoff assigns the chat to a human and marks the contact, once per
// exhaustion episode: a contact already carrying the marker is left alone.
func (e *Engine) handoff(ctx context.Context, logger *logging.Logger, ev models.InboundEvent) {
	if v, ok := ev.Chat.Contact.MetadataValue(QuotaStatusKey); ok && v == QuotaStatusExceeded {
		logger.Debug("quota hand-off already done")
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := e.deps.Gateway.AssignChatToAgent(ctx, ev.Device.ID, ev.GatewayChatID(), "", true); err != nil {
			return fmt.Errorf("assign chat: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		marker := []models.MetadataEntry{{Key: QuotaStatusKey, Value: QuotaStatusExceeded}}
		if err := e.deps.Gateway.UpdateChatMetadata(ctx, ev.Device.ID, ev.ReplyPhone(), marker); err != nil {
			return fmt.Errorf("mark contact: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn("quota hand-off incomplete", "error", err)
		return
	}
	e.deps.Metrics.ObserveHandoff()
	if e.deps.Notifier != nil {
		e.deps.Notifier.BroadcastEvent(EventHandoff, map[string]string{"chat": ev.ChatID()})
	}
	logger.Info("chat handed off to an agent")
}
