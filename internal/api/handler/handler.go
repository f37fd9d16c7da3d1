// Package handler exposes the chat hub and the chat store over HTTP.
package handler

import (
	"net/http"

	"crmchat/backend/internal/chathub"
	"crmchat/backend/internal/config"
	"crmchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds the dependencies shared by the websocket and REST routes.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Storage
	Config  *config.Config
	Log     *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, s storage.Storage, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{Hub: hub, Storage: s, Config: cfg, Log: log}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)
	r.Static("/"+config.UploadsURLPrefix, h.Config.UploadDir)

	api := r.Group("/api/chat", h.RequireAuth())
	{
		api.GET("/unread-counts/:userId", h.UnreadCounts)
		api.GET("/group-unread-counts/:userId", h.GroupUnreadCounts)
		api.POST("/mark-as-read", h.MarkAsRead)
		api.POST("/mark-group-as-read", h.MarkGroupAsRead)
		api.GET("/allNotifications/:userId", h.AllNotifications)
		api.POST("/notifications/seen", h.NotificationsSeen)
		api.POST("/createGroup", h.CreateGroup)
		api.GET("/fetchGroup/:id", h.FetchGroup)
		api.GET("/all-user/:userId", h.AllUsers)
		api.GET("/online", h.Online)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.Hub.ConnectionCount()})
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.Log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()))
	}
}

// fail writes the error body shared by every REST endpoint.
func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
