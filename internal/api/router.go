package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-concierge/internal/metrics"
	"whatsapp-concierge/internal/webhook"
	"whatsapp-concierge/internal/ws"
)

// Routes groups every handler served by the HTTP server.
type Routes struct {
	Webhook   *webhook.Handler
	WhatsApp  *WhatsAppHandler
	Files     *FilesHandler
	Dashboard *DashboardHandler
	Hub       *ws.Hub
	Metrics   *metrics.Metrics
}

func NewRouter(rt Routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/", rt.Dashboard.Index)
	r.POST("/webhook", rt.Webhook.HandleMessage)
	r.POST("/message", rt.WhatsApp.SendMessage)
	r.GET("/sample", rt.WhatsApp.Sample)
	r.GET("/files/:id", rt.Files.Download)
	r.GET("/chats/:id/history", rt.Dashboard.GetHistory)
	r.GET("/metrics", gin.WrapH(rt.Metrics.Handler()))
	if rt.Hub != nil {
		r.GET("/ws", gin.WrapF(rt.Hub.ServeWs))
	}
	return r
}
