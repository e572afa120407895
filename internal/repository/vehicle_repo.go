package repository

import (
	"roadassist/internal/models"

	"gorm.io/gorm"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) Create(v *models.Vehicle) error {
	return r.db.Create(v).Error
}

func (r *VehicleRepository) GetByID(id string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := r.db.Where("id = ?", id).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetOwned returns the vehicle only when it belongs to userID.
func (r *VehicleRepository) GetOwned(id, userID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) GetByVIN(vin string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := r.db.Where("vin = ?", vin).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) ListByUser(userID string) ([]models.Vehicle, error) {
	var list []models.Vehicle
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *VehicleRepository) Update(v *models.Vehicle) error {
	return r.db.Save(v).Error
}

func (r *VehicleRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Vehicle{}).Error
}
