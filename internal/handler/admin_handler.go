package handler

import (
	"errors"
	"net/http"

	"roadassist/internal/domain"
	"roadassist/internal/middleware"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	adminRepo *repository.AdminRepository
	auditRepo *repository.AuditLogRepository
	authSvc   *service.AuthService
}

func NewAdminHandler(adminRepo *repository.AdminRepository, auditRepo *repository.AuditLogRepository, authSvc *service.AuthService) *AdminHandler {
	return &AdminHandler{adminRepo: adminRepo, auditRepo: auditRepo, authSvc: authSvc}
}

// AdminLogin handles POST /admin/login; only ADMIN accounts get tokens.
func (h *AdminHandler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	u, tokens, err := h.authSvc.Login(req.Email, req.Password)
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !u.IsAdmin() {
		fail(c, http.StatusForbidden, "admin access required")
		return
	}
	respond(c, http.StatusOK, "Login successful", gin.H{
		"user":         u,
		"accessToken":  tokens.Access,
		"refreshToken": tokens.Refresh,
	})
}

// Overview handles GET /admin/stats/overview.
func (h *AdminHandler) Overview(c *gin.Context) {
	stats, err := h.adminRepo.GetDashboardStats()
	if err != nil {
		internalError(c, "admin", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"stats": stats})
}

// TotalUsers handles GET /admin/stats/users/total?role=.
func (h *AdminHandler) TotalUsers(c *gin.Context) {
	role, ok := roleQuery(c)
	if !ok {
		return
	}
	n, err := h.adminRepo.CountUsers(role)
	if err != nil {
		internalError(c, "admin", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"totalUsers": n})
}

// ListUsers handles GET /admin/users?role=&search=&page=&limit=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	role, ok := roleQuery(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	users, total, err := h.adminRepo.ListUsers(c.Query("search"), role, page, limit)
	if err != nil {
		internalError(c, "admin", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"users": users, "total": total, "page": page, "limit": limit})
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	u, err := h.adminRepo.GetUserByID(c.Param("userId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		internalError(c, "admin", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": u})
}

func (h *AdminHandler) Ban(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if c.Param("userId") == middleware.GetUserID(c) {
		fail(c, http.StatusBadRequest, "you cannot ban yourself")
		return
	}
	h.setBanned(c, true, req.Reason)
}

func (h *AdminHandler) Unban(c *gin.Context) {
	h.setBanned(c, false, "")
}

func (h *AdminHandler) setBanned(c *gin.Context, banned bool, reason string) {
	userID := c.Param("userId")
	if err := h.adminRepo.SetBanned(userID, banned, reason); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		internalError(c, "admin", err)
		return
	}
	action, msg := "ban_user", "User banned successfully"
	if !banned {
		action, msg = "unban_user", "User unbanned successfully"
	}
	adminID := middleware.GetUserID(c)
	_ = h.auditRepo.Create(&models.AuditLog{
		ActorID:    &adminID,
		Action:     action,
		Resource:   "user",
		ResourceID: userID,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Metadata:   reason,
	})
	respond(c, http.StatusOK, msg, nil)
}

// AuditTrail handles GET /admin/users/:userId/audit.
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	logs, err := h.auditRepo.ListByResource("user", c.Param("userId"))
	if err != nil {
		internalError(c, "admin", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"logs": logs})
}

func roleQuery(c *gin.Context) (string, bool) {
	role := c.Query("role")
	if role != "" && !domain.ValidRole(role, []string{domain.RoleUser, domain.RoleVendor, domain.RoleServiceProvider, domain.RoleAdmin}) {
		fail(c, http.StatusBadRequest, "invalid role")
		return "", false
	}
	return role, true
}
