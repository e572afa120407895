package repository

import (
	"time"

	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/pkg/location"

	"gorm.io/gorm"
)

type EmergencyRepository struct {
	db *gorm.DB
}

func NewEmergencyRepository(db *gorm.DB) *EmergencyRepository {
	return &EmergencyRepository{db: db}
}

func (r *EmergencyRepository) Create(e *models.EmergencyRequest) error {
	return r.db.Create(e).Error
}

func (r *EmergencyRepository) GetByID(id string) (*models.EmergencyRequest, error) {
	var e models.EmergencyRequest
	err := r.db.Preload("User").Preload("Vehicle").Where("id = ?", id).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EmergencyRepository) ListByUser(userID string) ([]models.EmergencyRequest, error) {
	var list []models.EmergencyRequest
	err := r.db.Preload("Vehicle").Preload("Provider").
		Where("user_id = ?", userID).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

// ListByProvider returns the requests a provider has taken on.
func (r *EmergencyRepository) ListByProvider(providerID string) ([]models.EmergencyRequest, error) {
	var list []models.EmergencyRequest
	err := r.db.Preload("User").Preload("Vehicle").
		Where("provider_id = ?", providerID).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

// PendingIn returns PENDING requests whose position lies in the box.
func (r *EmergencyRepository) PendingIn(box location.BoundingBox) ([]models.EmergencyRequest, error) {
	var list []models.EmergencyRequest
	err := r.db.Preload("User").Preload("Vehicle").
		Where("status = ?", domain.EmergencyPending).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

// Accept moves a PENDING request to INPROGRESS for providerID. It is a single
// conditional UPDATE, so of several concurrent callers at most one gets true.
func (r *EmergencyRepository) Accept(id, providerID string, at time.Time) (bool, error) {
	res := r.db.Model(&models.EmergencyRequest{}).
		Where("id = ? AND status = ?", id, domain.EmergencyPending).
		Updates(map[string]interface{}{
			"status":      domain.EmergencyInProgress,
			"provider_id": providerID,
			"accepted_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// Complete moves an INPROGRESS request owned by providerID to COMPLETED.
func (r *EmergencyRepository) Complete(id, providerID string, at time.Time) (bool, error) {
	res := r.db.Model(&models.EmergencyRequest{}).
		Where("id = ? AND status = ? AND provider_id = ?", id, domain.EmergencyInProgress, providerID).
		Updates(map[string]interface{}{
			"status":       domain.EmergencyCompleted,
			"completed_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *EmergencyRepository) CountByStatus(status string) (int64, error) {
	var n int64
	err := r.db.Model(&models.EmergencyRequest{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
