package handler

import (
	"errors"
	"net/http"

	"roadassist/internal/middleware"
	"roadassist/internal/models"
	"roadassist/internal/service"

	"github.com/gin-gonic/gin"
)

type EmergencyHandler struct {
	svc           *service.EmergencyService
	defaultRadius float64
}

func NewEmergencyHandler(svc *service.EmergencyService, defaultRadiusKm float64) *EmergencyHandler {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 10
	}
	return &EmergencyHandler{svc: svc, defaultRadius: defaultRadiusKm}
}

type EmergencyRequestBody struct {
	VehicleID      string   `json:"vehicleId" binding:"required"`
	AssistanceType string   `json:"assistanceType" binding:"required"`
	Description    string   `json:"description"`
	Latitude       *float64 `json:"latitude" binding:"required"`
	Longitude      *float64 `json:"longitude" binding:"required"`
}

func (h *EmergencyHandler) Create(c *gin.Context) {
	var req EmergencyRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	er, providers, err := h.svc.Request(c.Request.Context(), middleware.GetUserID(c), service.EmergencyInput{
		VehicleID:      req.VehicleID,
		AssistanceType: req.AssistanceType,
		Description:    req.Description,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
	})
	if err != nil {
		h.emergencyError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Emergency assistance requested", gin.H{
		"request":         er,
		"nearbyProviders": providers,
	})
}

func (h *EmergencyHandler) UserRequests(c *gin.Context) {
	list, err := h.svc.ListForUser(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "emergency", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"requests": list})
}

func (h *EmergencyHandler) ProviderRequests(c *gin.Context) {
	list, err := h.svc.ListForProvider(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "emergency", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"requests": list})
}

// Nearby lists PENDING requests around ?latitude&longitude within ?radius km.
func (h *EmergencyHandler) Nearby(c *gin.Context) {
	if c.Query("latitude") == "" || c.Query("longitude") == "" {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	lat, ok1 := queryFloat(c, "latitude", 0)
	lng, ok2 := queryFloat(c, "longitude", 0)
	radius, ok3 := queryFloat(c, "radius", h.defaultRadius)
	if !ok1 || !ok2 || !ok3 {
		fail(c, http.StatusBadRequest, "latitude, longitude and radius must be numbers")
		return
	}
	list, err := h.svc.Nearby(lat, lng, radius)
	if err != nil {
		internalError(c, "emergency", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"requests": list})
}

// Accept takes an optional {latitude, longitude} body with the provider's position.
func (h *EmergencyHandler) Accept(c *gin.Context) {
	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	_ = c.ShouldBindJSON(&body)
	var at *models.Position
	if body.Latitude != nil && body.Longitude != nil {
		at = &models.Position{Latitude: *body.Latitude, Longitude: *body.Longitude}
	}
	er, err := h.svc.Accept(c.Request.Context(), c.Param("requestId"), middleware.GetUserID(c), at)
	if err != nil {
		h.emergencyError(c, err)
		return
	}
	respond(c, http.StatusOK, "Emergency request accepted", gin.H{"request": er})
}

func (h *EmergencyHandler) Complete(c *gin.Context) {
	er, err := h.svc.Complete(c.Request.Context(), c.Param("requestId"), middleware.GetUserID(c))
	if err != nil {
		h.emergencyError(c, err)
		return
	}
	respond(c, http.StatusOK, "Emergency request completed", gin.H{"request": er})
}

func (h *EmergencyHandler) emergencyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmergencyNotFound):
		fail(c, http.StatusNotFound, "Emergency request not found")
	case errors.Is(err, service.ErrVehicleNotFound):
		fail(c, http.StatusNotFound, "Vehicle not found")
	case errors.Is(err, service.ErrNotProvider), errors.Is(err, service.ErrNotAssignedProvider):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAlreadyAccepted), errors.Is(err, service.ErrAlreadyCompleted),
		errors.Is(err, service.ErrNotAccepted), errors.Is(err, service.ErrInvalidPosition):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		internalError(c, "emergency", err)
	}
}
