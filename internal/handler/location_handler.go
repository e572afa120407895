package handler

import (
	"net/http"
	"time"

	"roadassist/internal/middleware"
	"roadassist/internal/repository"
	"roadassist/pkg/proximity"

	"github.com/gin-gonic/gin"
)

// PositionBroadcaster fans a stored position out to live clients.
type PositionBroadcaster interface {
	BroadcastPosition(userID string, lat, lng float64, available *bool) int
}

type LocationHandler struct {
	locRepo       *repository.LocationRepository
	userRepo      *repository.UserRepository
	live          PositionBroadcaster
	defaultRadius float64
}

func NewLocationHandler(locRepo *repository.LocationRepository, userRepo *repository.UserRepository, live PositionBroadcaster, defaultRadiusKm float64) *LocationHandler {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = proximity.DefaultRadiusKm
	}
	return &LocationHandler{locRepo: locRepo, userRepo: userRepo, live: live, defaultRadius: defaultRadiusKm}
}

type UpdateLocationRequest struct {
	Latitude    *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	IsAvailable *bool    `json:"isAvailable"`
}

// Update overwrites the caller's position, then broadcasts it.
func (h *LocationHandler) Update(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	userID := middleware.GetUserID(c)
	if err := h.locRepo.SavePosition(userID, *req.Latitude, *req.Longitude, req.IsAvailable, time.Now()); err != nil {
		internalError(c, "location", err)
		return
	}
	if h.live != nil {
		h.live.BroadcastPosition(userID, *req.Latitude, *req.Longitude, req.IsAvailable)
	}
	respond(c, http.StatusOK, "Location updated successfully", nil)
}

func (h *LocationHandler) Mine(c *gin.Context) {
	loc, err := h.locRepo.GetByUserID(middleware.GetUserID(c))
	if err != nil {
		fail(c, http.StatusNotFound, "No location reported yet")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"location": loc})
}

type nearbyProvider struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CompanyName  string  `json:"companyName,omitempty"`
	Phone        string  `json:"phone"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ProfileImage string  `json:"profileImage"`
	Services     string  `json:"services,omitempty"`
	Distance     float64 `json:"distance"`
	Proximity    string  `json:"proximity"`
}

// Nearby lists online providers around ?latitude&longitude within ?radius km,
// optionally filtered by ?type (a service name).
func (h *LocationHandler) Nearby(c *gin.Context) {
	if c.Query("latitude") == "" || c.Query("longitude") == "" {
		fail(c, http.StatusBadRequest, "Latitude and longitude are required")
		return
	}
	lat, ok1 := queryFloat(c, "latitude", 0)
	lng, ok2 := queryFloat(c, "longitude", 0)
	radius, ok3 := queryFloat(c, "radius", h.defaultRadius)
	if !ok1 || !ok2 || !ok3 {
		fail(c, http.StatusBadRequest, "latitude, longitude and radius must be numbers")
		return
	}
	q := proximity.Radius(lat, lng, radius)
	users, err := h.userRepo.FindProviders(repository.ProviderFilter{
		Box:        q.Box(),
		OnlineOnly: true,
		Service:    c.Query("type"),
	})
	if err != nil {
		internalError(c, "location", err)
		return
	}
	matches := proximity.Within(q, users)
	out := make([]nearbyProvider, 0, len(matches))
	for _, m := range matches {
		u := m.Item
		out = append(out, nearbyProvider{
			ID:           u.ID,
			Name:         u.Name,
			CompanyName:  u.CompanyName,
			Phone:        u.Phone,
			Latitude:     u.Latitude,
			Longitude:    u.Longitude,
			ProfileImage: u.ProfileImage,
			Services:     u.Services,
			Distance:     m.DistanceKm,
			Proximity:    proximity.Describe(m.DistanceKm, radius),
		})
	}
	respond(c, http.StatusOK, "", gin.H{"providers": out})
}
