package repository

import (
	"errors"
	"time"

	"roadassist/internal/models"

	"gorm.io/gorm"
)

type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// SavePosition overwrites the user's location row and the coordinates on the
// user record in one transaction. available is left unchanged when nil; a new
// row defaults to available.
func (r *LocationRepository) SavePosition(userID string, lat, lng float64, available *bool, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		var loc models.UserLocation
		err := tx.Where("user_id = ?", userID).First(&loc).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			loc = models.UserLocation{UserID: userID, IsAvailable: true}
		case err != nil:
			return err
		}
		loc.Latitude = lat
		loc.Longitude = lng
		loc.LastUpdated = at
		if available != nil {
			loc.IsAvailable = *available
		}
		if err := tx.Save(&loc).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"latitude":            lat,
			"longitude":           lng,
			"location_updated_at": at,
		}).Error
	})
}

func (r *LocationRepository) GetByUserID(userID string) (*models.UserLocation, error) {
	var loc models.UserLocation
	err := r.db.Where("user_id = ?", userID).First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
