package handler

import (
	"errors"
	"net/http"

	"roadassist/internal/middleware"
	"roadassist/internal/models"
	"roadassist/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type VehicleHandler struct {
	repo   *repository.VehicleRepository
	images *ImageStore
}

func NewVehicleHandler(repo *repository.VehicleRepository, images *ImageStore) *VehicleHandler {
	return &VehicleHandler{repo: repo, images: images}
}

type VehicleRequest struct {
	Brand string `form:"brand" json:"brand" binding:"required"`
	Model string `form:"model" json:"model" binding:"required"`
	Year  int    `form:"year" json:"year" binding:"required,min=1886"`
	VIN   string `form:"vin" json:"vin" binding:"required"`
}

type VehicleUpdateRequest struct {
	Brand string `form:"brand" json:"brand"`
	Model string `form:"model" json:"model"`
	Year  int    `form:"year" json:"year"`
	VIN   string `form:"vin" json:"vin"`
}

func (h *VehicleHandler) Create(c *gin.Context) {
	var req VehicleRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	if _, err := h.repo.GetByVIN(req.VIN); err == nil {
		fail(c, http.StatusBadRequest, "A vehicle with this VIN already exists")
		return
	}
	v := &models.Vehicle{
		UserID: middleware.GetUserID(c),
		Brand:  req.Brand,
		Model:  req.Model,
		Year:   req.Year,
		VIN:    req.VIN,
	}
	if fh, err := c.FormFile("image"); err == nil {
		v.Image, err = h.images.Upload(c.Request.Context(), fh, "vehicles")
		if err != nil {
			internalError(c, "vehicle", err)
			return
		}
	}
	if err := h.repo.Create(v); err != nil {
		h.images.Discard(c.Request.Context(), v.Image)
		internalError(c, "vehicle", err)
		return
	}
	respond(c, http.StatusCreated, "Vehicle added successfully", gin.H{"vehicle": v})
}

func (h *VehicleHandler) List(c *gin.Context) {
	vehicles, err := h.repo.ListByUser(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "vehicle", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"vehicles": vehicles})
}

func (h *VehicleHandler) Get(c *gin.Context) {
	v, ok := h.owned(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "", gin.H{"vehicle": v})
}

func (h *VehicleHandler) Update(c *gin.Context) {
	v, ok := h.owned(c)
	if !ok {
		return
	}
	var req VehicleUpdateRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.VIN != "" && req.VIN != v.VIN {
		if other, err := h.repo.GetByVIN(req.VIN); err == nil && other.ID != v.ID {
			fail(c, http.StatusBadRequest, "A vehicle with this VIN already exists")
			return
		}
		v.VIN = req.VIN
	}
	if req.Brand != "" {
		v.Brand = req.Brand
	}
	if req.Model != "" {
		v.Model = req.Model
	}
	if req.Year > 0 {
		v.Year = req.Year
	}
	var oldImage string
	if fh, err := c.FormFile("image"); err == nil {
		url, err := h.images.Upload(c.Request.Context(), fh, "vehicles")
		if err != nil {
			internalError(c, "vehicle", err)
			return
		}
		oldImage, v.Image = v.Image, url
	}
	if err := h.repo.Update(v); err != nil {
		internalError(c, "vehicle", err)
		return
	}
	h.images.Discard(c.Request.Context(), oldImage)
	respond(c, http.StatusOK, "Vehicle updated successfully", gin.H{"vehicle": v})
}

func (h *VehicleHandler) Delete(c *gin.Context) {
	v, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(v.ID); err != nil {
		internalError(c, "vehicle", err)
		return
	}
	h.images.Discard(c.Request.Context(), v.Image)
	respond(c, http.StatusOK, "Vehicle deleted successfully", nil)
}

func (h *VehicleHandler) owned(c *gin.Context) (*models.Vehicle, bool) {
	v, err := h.repo.GetOwned(c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Vehicle not found or unauthorized access")
		} else {
			internalError(c, "vehicle", err)
		}
		return nil, false
	}
	return v, true
}
