package repository

import (
	"time"

	"roadassist/internal/domain"
	"roadassist/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByProviderRef(ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("provider_ref = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByUser(userID string) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}

// MarkCompleted flips a PENDING payment to COMPLETED. It returns false when
// the payment was already settled, so callers run side effects only once.
func (r *PaymentRepository) MarkCompleted(id string, at time.Time) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(map[string]interface{}{"status": domain.PaymentCompleted, "completed_at": at})
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) MarkFailed(id string) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Update("status", domain.PaymentFailed).Error
}

func (r *PaymentRepository) TotalCompleted() (int64, error) {
	var rev struct{ Total int64 }
	err := r.db.Model(&models.Payment{}).Select("COALESCE(SUM(amount), 0) as total").
		Where("status = ?", domain.PaymentCompleted).Scan(&rev).Error
	return rev.Total, err
}
