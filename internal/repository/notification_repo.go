package repository

import (
	"roadassist/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) ListByUserID(userID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []models.Notification
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// MarkRead flags one notification; it returns gorm.ErrRecordNotFound when the
// notification does not belong to userID.
func (r *NotificationRepository) MarkRead(id, userID string) error {
	res := r.db.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		r.db.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Count(&n)
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(userID string) (int64, error) {
	res := r.db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) UnreadCount(userID string) (int64, error) {
	var n int64
	err := r.db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}
