package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-concierge/internal/whatsapp"
	"whatsapp-concierge/pkg/logging"
)

// Sender forwards raw message payloads to the gateway.
type Sender interface {
	SendRawMessage(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

type WhatsAppHandler struct {
	Client      Sender
	DeviceID    string
	DevicePhone string
	Logger      *logging.Logger
}

func NewWhatsAppHandler(client Sender, deviceID, devicePhone string, logger *logging.Logger) *WhatsAppHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppHandler{Client: client, DeviceID: deviceID, DevicePhone: devicePhone, Logger: logger}
}

// SendMessage proxies POST /message to the gateway as-is.
func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || isBlank(body["phone"]) || isBlank(body["message"]) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload body"})
		return
	}
	if _, ok := body["device"]; !ok && h.DeviceID != "" {
		body["device"] = h.DeviceID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload body"})
		return
	}
	h.forward(c, payload, "Failed to send message")
}

// Sample sends a test message to the bot's own number or to ?phone=.
func (h *WhatsAppHandler) Sample(c *gin.Context) {
	payload, err := json.Marshal(map[string]string{
		"phone":   c.DefaultQuery("phone", h.DevicePhone),
		"message": c.DefaultQuery("message", "Hello World from Wassenger!"),
		"device":  h.DeviceID,
	})
	if err != nil {
		h.Logger.Error("failed to encode sample message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send sample message"})
		return
	}
	h.forward(c, payload, "Failed to send sample message")
}

func (h *WhatsAppHandler) forward(c *gin.Context, payload json.RawMessage, fallback string) {
	resp, err := h.Client.SendRawMessage(c.Request.Context(), payload)
	if err != nil {
		var apiErr *whatsapp.APIError
		if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
			c.Data(apiErr.Status, "application/json; charset=utf-8", apiErr.Body)
			return
		}
		h.Logger.Error("on-demand send failed", "error", err)
		status := http.StatusInternalServerError
		if apiErr != nil {
			status = apiErr.Status
		}
		c.JSON(status, gin.H{"message": fallback})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp)
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return !ok || s == ""
}
