package handler

import (
	"net/http"

	"roadassist/internal/domain"
	"roadassist/internal/middleware"
	"roadassist/internal/models"
	"roadassist/internal/repository"

	"github.com/gin-gonic/gin"
)

// ChatRelay pushes chat traffic to live clients. *ws.Relay satisfies it.
type ChatRelay interface {
	DeliverChat(m *models.ChatMessage) int
	NotifyRead(readerID string, msgs []models.ChatMessage)
}

type ChatHandler struct {
	chatRepo *repository.ChatRepository
	userRepo *repository.UserRepository
	live     ChatRelay
}

func NewChatHandler(chatRepo *repository.ChatRepository, userRepo *repository.UserRepository, live ChatRelay) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, userRepo: userRepo, live: live}
}

func (h *ChatHandler) History(c *gin.Context) {
	msgs, err := h.chatRepo.History(middleware.GetUserID(c), c.Param("otherUserId"))
	if err != nil {
		internalError(c, "chat", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"messages": msgs})
}

// Send stores a message and relays it like the private_message socket event.
func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiverId" binding:"required"`
		Message    string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "receiverId and message are required")
		return
	}
	senderID := middleware.GetUserID(c)
	if req.ReceiverID == senderID {
		fail(c, http.StatusBadRequest, "cannot message yourself")
		return
	}
	if _, err := h.userRepo.GetByID(req.ReceiverID); err != nil {
		fail(c, http.StatusNotFound, "Receiver not found")
		return
	}
	m := &models.ChatMessage{SenderID: senderID, ReceiverID: req.ReceiverID, Message: req.Message}
	if err := h.chatRepo.Create(m); err != nil {
		internalError(c, "chat", err)
		return
	}
	if h.live != nil {
		h.live.DeliverChat(m)
	}
	respond(c, http.StatusCreated, "Message sent", gin.H{"message": m})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	readerID := middleware.GetUserID(c)
	senderID := c.Param("senderId")
	ids, err := h.chatRepo.MarkReadFrom(senderID, readerID)
	if err != nil {
		internalError(c, "chat", err)
		return
	}
	if h.live != nil && len(ids) > 0 {
		msgs := make([]models.ChatMessage, 0, len(ids))
		for _, id := range ids {
			msgs = append(msgs, models.ChatMessage{ID: id, SenderID: senderID, ReceiverID: readerID})
		}
		h.live.NotifyRead(readerID, msgs)
	}
	respond(c, http.StatusOK, "Messages marked as read", gin.H{"count": len(ids)})
}

func (h *ChatHandler) Unread(c *gin.Context) {
	n, err := h.chatRepo.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "chat", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"unreadCount": n})
}

// ByRole lists the latest message with each counterpart holding :role.
func (h *ChatHandler) ByRole(c *gin.Context) {
	role := c.Param("role")
	if !domain.ValidRole(role, []string{domain.RoleUser, domain.RoleVendor, domain.RoleServiceProvider, domain.RoleAdmin}) {
		fail(c, http.StatusBadRequest, "invalid role")
		return
	}
	convs, err := h.chatRepo.ConversationsWithRole(middleware.GetUserID(c), role)
	if err != nil {
		internalError(c, "chat", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"chats": convs})
}
