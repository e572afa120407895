package repository

import (
	"time"

	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/pkg/location"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	var u models.User
	err := r.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByPhone(phone string) (*models.User, error) {
	var u models.User
	err := r.db.Where("phone = ?", phone).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByGoogleID(googleID string) (*models.User, error) {
	var u models.User
	err := r.db.Where("google_id = ?", googleID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}

// Delete removes the user together with the rows that only make sense for them.
func (r *UserRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserLocation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Vehicle{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
}

func (r *UserRepository) SetFCMToken(id, token string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token).Error
}

func (r *UserRepository) SetOnline(id string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("is_online", true).Error
}

func (r *UserRepository) SetOffline(id string, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": false, "last_seen": at}).Error
}

// ProviderFilter narrows FindProviders.
type ProviderFilter struct {
	Box        location.BoundingBox
	OnlineOnly bool
	Service    string // substring of the provider's services, optional
}

// FindProviders returns service providers whose stored position lies in the box.
// Providers that never reported a position are skipped.
func (r *UserRepository) FindProviders(f ProviderFilter) ([]models.User, error) {
	q := r.db.Where("role = ?", domain.RoleServiceProvider).
		Where("location_updated_at IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", f.Box.MinLat, f.Box.MaxLat).
		Where("longitude BETWEEN ? AND ?", f.Box.MinLng, f.Box.MaxLng)
	if f.OnlineOnly {
		q = q.Where("is_online = ?", true)
	}
	if f.Service != "" {
		q = q.Where("services LIKE ?", "%"+f.Service+"%")
	}
	var list []models.User
	err := q.Order("created_at ASC").Find(&list).Error
	return list, err
}

// OnlineProvidersIn is FindProviders restricted to connected providers.
func (r *UserRepository) OnlineProvidersIn(box location.BoundingBox) ([]models.User, error) {
	return r.FindProviders(ProviderFilter{Box: box, OnlineOnly: true})
}

// ProvidersIn is FindProviders regardless of presence.
func (r *UserRepository) ProvidersIn(box location.BoundingBox) ([]models.User, error) {
	return r.FindProviders(ProviderFilter{Box: box})
}
