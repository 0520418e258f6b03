package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whatsapp-concierge/internal/metrics"
	"whatsapp-concierge/pkg/logging"
	"whatsapp-concierge/pkg/models"
)

// Processor runs a conversational turn.
type Processor interface {
	ProcessIncomingMessage(ctx context.Context, ev models.InboundEvent) error
}

type Handler struct {
	Processor   Processor
	Device      models.Device
	TurnTimeout time.Duration
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
}

func NewHandler(processor Processor, device models.Device, turnTimeout time.Duration, m *metrics.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if turnTimeout <= 0 {
		turnTimeout = 2 * time.Minute
	}
	return &Handler{
		Processor:   processor,
		Device:      device,
		TurnTimeout: turnTimeout,
		Metrics:     m,
		Logger:      logger,
	}
}

// HandleMessage acknowledges the delivery at once and runs the turn in the background.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Event == "" || payload.Data == nil {
		h.Metrics.ObserveInbound(payload.Event, "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload body"})
		return
	}

	if payload.Event != models.EventMessageInNew {
		h.Metrics.ObserveInbound(payload.Event, "ignored")
		c.JSON(http.StatusAccepted, gin.H{"message": "Ignore webhook event: only message:in:new is accepted"})
		return
	}

	ev := models.NewInboundEvent(payload, h.Device)
	h.Metrics.ObserveInbound(payload.Event, "accepted")
	c.JSON(http.StatusOK, gin.H{"ok": true})

	go h.process(ev)
}

func (h *Handler) process(ev models.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), h.TurnTimeout)
	defer cancel()
	if err := h.Processor.ProcessIncomingMessage(ctx, ev); err != nil {
		h.Logger.Error("failed to process inbound message", "chat", ev.ChatID(), "message_id", ev.MessageID, "error", err)
	}
}
