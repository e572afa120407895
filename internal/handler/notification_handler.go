package handler

import (
	"errors"
	"net/http"

	"roadassist/internal/middleware"
	"roadassist/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	repo *repository.NotificationRepository
}

func NewNotificationHandler(repo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// List serves both /notifications and /vendor/notifications; a vendor's
// notifications are simply the ones addressed to them.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	list, err := h.repo.ListByUserID(userID, limit, (page-1)*limit)
	if err != nil {
		internalError(c, "notification", err)
		return
	}
	unread, err := h.repo.UnreadCount(userID)
	if err != nil {
		internalError(c, "notification", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"notifications": list, "unreadCount": unread})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.repo.MarkRead(c.Param("id"), middleware.GetUserID(c)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Notification not found")
			return
		}
		internalError(c, "notification", err)
		return
	}
	respond(c, http.StatusOK, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.repo.MarkAllRead(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "notification", err)
		return
	}
	respond(c, http.StatusOK, "All notifications marked as read", gin.H{"count": n})
}
