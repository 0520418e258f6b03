package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-concierge/internal/store"
	"whatsapp-concierge/pkg/logging"
)

type DashboardHandler struct {
	History store.HistoryStore
	Logger  *logging.Logger
}

func NewDashboardHandler(history store.HistoryStore, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{History: history, Logger: logger}
}

type endpoint struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// Index describes the service.
func (h *DashboardHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "whatsapp-concierge",
		"description": "WhatsApp conversational concierge for the Wassenger gateway",
		"endpoints": gin.H{
			"webhook":     endpoint{"/webhook", http.MethodPost},
			"sendMessage": endpoint{"/message", http.MethodPost},
			"sample":      endpoint{"/sample", http.MethodGet},
			"files":       endpoint{"/files/:id", http.MethodGet},
			"history":     endpoint{"/chats/:id/history", http.MethodGet},
			"metrics":     endpoint{"/metrics", http.MethodGet},
			"events":      endpoint{"/ws", http.MethodGet},
		},
	})
}

// GetHistory returns the recorded messages of one chat, oldest first.
func (h *DashboardHandler) GetHistory(c *gin.Context) {
	entries, err := h.History.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Logger.Error("failed to load chat history", "chat", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
