package handler

import (
	"errors"
	"net/http"

	"roadassist/internal/auth"
	"roadassist/internal/middleware"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthHandler struct {
	svc       *service.AuthService
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditLogRepository
	images    *ImageStore
}

func NewAuthHandler(svc *service.AuthService, userRepo *repository.UserRepository, auditRepo *repository.AuditLogRepository, images *ImageStore) *AuthHandler {
	return &AuthHandler{svc: svc, userRepo: userRepo, auditRepo: auditRepo, images: images}
}

// RegisterRequest is bound from JSON or multipart form; the optional
// profile picture comes in the "image" file field.
type RegisterRequest struct {
	Name        string `form:"name" json:"name" binding:"required"`
	Email       string `form:"email" json:"email" binding:"required,email"`
	Phone       string `form:"phone" json:"phone" binding:"required"`
	Password    string `form:"password" json:"password" binding:"required,min=6"`
	Role        string `form:"role" json:"role"`
	CompanyName string `form:"companyName" json:"companyName"`
	Services    string `form:"services" json:"services"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	var image string
	if fh, err := c.FormFile("image"); err == nil {
		image, err = h.images.Upload(c.Request.Context(), fh, "profiles")
		if err != nil {
			internalError(c, "auth", err)
			return
		}
	}
	u, tokens, err := h.svc.Register(service.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     req.Password,
		Role:         req.Role,
		CompanyName:  req.CompanyName,
		Services:     req.Services,
		ProfileImage: image,
	})
	if err != nil {
		h.images.Discard(c.Request.Context(), image)
		switch {
		case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrPhoneExists),
			errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrCompanyNameRequired):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			internalError(c, "auth", err)
		}
		return
	}
	h.auditLog(u.ID, "register", c)
	respond(c, http.StatusCreated, "User registered successfully", gin.H{
		"user":         u,
		"accessToken":  tokens.Access,
		"refreshToken": tokens.Refresh,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	u, tokens, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCreds):
			fail(c, http.StatusUnauthorized, err.Error())
		case errors.Is(err, service.ErrBanned):
			fail(c, http.StatusForbidden, err.Error())
		default:
			internalError(c, "auth", err)
		}
		return
	}
	h.auditLog(u.ID, "login", c)
	respond(c, http.StatusOK, "Login successful", gin.H{
		"user":         u,
		"accessToken":  tokens.Access,
		"refreshToken": tokens.Refresh,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	tokens, err := h.svc.RefreshToken(req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBanned):
			fail(c, http.StatusForbidden, err.Error())
		case errors.Is(err, auth.ErrInvalidToken):
			fail(c, http.StatusUnauthorized, "invalid refresh token")
		default:
			fail(c, http.StatusUnauthorized, "invalid refresh token")
		}
		return
	}
	respond(c, http.StatusOK, "", gin.H{"accessToken": tokens.Access, "refreshToken": tokens.Refresh})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.userRepo.GetByID(middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		internalError(c, "auth", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": u})
}

type ProfileRequest struct {
	Name        string `form:"name" json:"name"`
	Phone       string `form:"phone" json:"phone"`
	CompanyName string `form:"companyName" json:"companyName"`
	Services    string `form:"services" json:"services"`
	OldPassword string `form:"oldPassword" json:"oldPassword"`
	NewPassword string `form:"newPassword" json:"newPassword"`
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.NewPassword != "" && req.OldPassword == "" {
		fail(c, http.StatusBadRequest, "oldPassword is required to change the password")
		return
	}
	userID := middleware.GetUserID(c)
	var image string
	if fh, err := c.FormFile("image"); err == nil {
		image, err = h.images.Upload(c.Request.Context(), fh, "profiles")
		if err != nil {
			internalError(c, "auth", err)
			return
		}
	}
	u, oldImage, err := h.svc.UpdateProfile(userID, service.ProfileUpdate{
		Name:         req.Name,
		Phone:        req.Phone,
		CompanyName:  req.CompanyName,
		Services:     req.Services,
		ProfileImage: image,
		OldPassword:  req.OldPassword,
		NewPassword:  req.NewPassword,
	})
	if err != nil {
		h.images.Discard(c.Request.Context(), image)
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrInvalidPassword), errors.Is(err, service.ErrPhoneExists):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			internalError(c, "auth", err)
		}
		return
	}
	h.images.Discard(c.Request.Context(), oldImage)
	respond(c, http.StatusOK, "Profile updated successfully", gin.H{"user": u})
}

func (h *AuthHandler) DeleteMe(c *gin.Context) {
	userID := middleware.GetUserID(c)
	u, err := h.userRepo.GetByID(userID)
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err := h.userRepo.Delete(userID); err != nil {
		internalError(c, "auth", err)
		return
	}
	h.images.Discard(c.Request.Context(), u.ProfileImage)
	h.auditLog(userID, "delete_account", c)
	respond(c, http.StatusOK, "Account deleted", nil)
}

func (h *AuthHandler) SetFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"fcmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "fcmToken is required")
		return
	}
	if err := h.userRepo.SetFCMToken(middleware.GetUserID(c), req.Token); err != nil {
		internalError(c, "auth", err)
		return
	}
	respond(c, http.StatusOK, "FCM token saved", nil)
}

func (h *AuthHandler) auditLog(userID, action string, c *gin.Context) {
	if h.auditRepo == nil {
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		ActorID:    &userID,
		Action:     action,
		Resource:   "user",
		ResourceID: userID,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
}
