package handler

import (
	"errors"
	"net/http"

	"crmchat/backend/internal/models"
	"crmchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) UnreadCounts(c *gin.Context) {
	counts, err := h.Storage.UnreadCounts(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.serverError(c, "unread counts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unreadCounts": counts})
}

func (h *Handler) GroupUnreadCounts(c *gin.Context) {
	counts, err := h.Storage.GroupUnreadCounts(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.serverError(c, "group unread counts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unreadCounts": counts})
}

// MarkAsRead flips the read flag without emitting a read receipt.
func (h *Handler) MarkAsRead(c *gin.Context) {
	var req models.MarkAsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.OtherUserID == "" {
		fail(c, http.StatusBadRequest, "userId and otherUserId are required")
		return
	}
	n, err := h.Storage.MarkDirectRead(c.Request.Context(), req.UserID, req.OtherUserID)
	if err != nil {
		h.serverError(c, "mark as read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (h *Handler) MarkGroupAsRead(c *gin.Context) {
	var req models.MarkGroupAsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.GroupID == "" {
		fail(c, http.StatusBadRequest, "userId and groupId are required")
		return
	}
	n, err := h.Storage.MarkGroupRead(c.Request.Context(), req.UserID, req.GroupID)
	if err != nil {
		h.serverError(c, "mark group as read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (h *Handler) AllNotifications(c *gin.Context) {
	list, err := h.Storage.ListNotifications(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.serverError(c, "list notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": list})
}

type seenRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *Handler) NotificationsSeen(c *gin.Context) {
	var req seenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "userId is required")
		return
	}
	n, err := h.Storage.MarkNotificationsSeen(c.Request.Context(), req.UserID)
	if err != nil {
		h.serverError(c, "mark notifications seen", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

type createGroupRequest struct {
	GroupName    string   `json:"groupName" binding:"required"`
	Participants []string `json:"participants"`
	Image        string   `json:"image"`
}

// CreateGroup stores a group record owned by the caller. The caller is always
// a participant.
func (h *Handler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "groupName is required")
		return
	}
	claims := claimsFrom(c)
	room := &models.ChatRoom{
		GroupName:    req.GroupName,
		Image:        req.Image,
		Organization: claims.Organization,
		Creator:      claims.AdminID,
	}
	room.Participants = append(room.Participants, claims.AdminID)
	for _, p := range req.Participants {
		if p != "" && !room.HasParticipant(p) {
			room.Participants = append(room.Participants, p)
		}
	}
	if err := h.Storage.SaveChatRoom(c.Request.Context(), room); err != nil {
		h.serverError(c, "create group", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "group": room})
}

func (h *Handler) FetchGroup(c *gin.Context) {
	room, err := h.Storage.GetChatRoom(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		h.serverError(c, "fetch group", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "group": room})
}

// AllUsers lists the caller's colleagues, excluding userId.
func (h *Handler) AllUsers(c *gin.Context) {
	admins, err := h.Storage.ListAdmins(c.Request.Context(), claimsFrom(c).Organization, c.Param("userId"))
	if err != nil {
		h.serverError(c, "list users", err)
		return
	}
	users := make([]models.AdminSummary, 0, len(admins))
	for i := range admins {
		users = append(users, admins[i].Summary())
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// Online prefers the Redis mirror and falls back to this process's registry.
func (h *Handler) Online(c *gin.Context) {
	users, err := h.Storage.OnlineUsers(c.Request.Context())
	if errors.Is(err, storage.ErrNoRedis) {
		users, err = h.Hub.Presence.Identities(), nil
	}
	if err != nil {
		h.serverError(c, "online users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	h.Log.Error(op, zap.String("path", c.FullPath()), zap.Error(err))
	fail(c, http.StatusInternalServerError, "internal server error")
}
