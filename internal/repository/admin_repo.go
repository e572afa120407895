package repository

import (
	"roadassist/internal/domain"
	"roadassist/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers          int64            `json:"totalUsers"`
	UsersByRole         map[string]int64 `json:"usersByRole"`
	OnlineProviders     int64            `json:"onlineProviders"`
	BannedUsers         int64            `json:"bannedUsers"`
	EmergenciesByStatus map[string]int64 `json:"emergenciesByStatus"`
	TotalOrders         int64            `json:"totalOrders"`
	TotalProducts       int64            `json:"totalProducts"`
	TotalRevenue        int64            `json:"totalRevenue"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) CountUsers(role string) (int64, error) {
	q := r.db.Model(&models.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListUsers returns users with search, role filter, and pagination.
func (r *AdminRepository) ListUsers(search, role string, page, limit int) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{})
	if search != "" {
		q = q.Where("name LIKE ? OR email LIKE ? OR phone LIKE ?", "%"+search+"%", "%"+search+"%", "%"+search+"%")
	}
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&users).Error
	return users, total, err
}

// GetUserByID returns a user with their last reported location.
func (r *AdminRepository) GetUserByID(id string) (*models.User, error) {
	var u models.User
	err := r.db.Preload("Location").Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *AdminRepository) SetBanned(id string, banned bool, reason string) error {
	var n int64
	if err := r.db.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_banned": banned, "ban_reason": reason}).Error
}

func (r *AdminRepository) GetDashboardStats() (*DashboardStats, error) {
	s := DashboardStats{
		UsersByRole:         map[string]int64{},
		EmergenciesByStatus: map[string]int64{},
	}
	if err := r.db.Model(&models.User{}).Count(&s.TotalUsers).Error; err != nil {
		return nil, err
	}
	var roles []struct {
		Role  string
		Count int64
	}
	if err := r.db.Model(&models.User{}).Select("role, COUNT(*) as count").Group("role").Scan(&roles).Error; err != nil {
		return nil, err
	}
	for _, row := range roles {
		s.UsersByRole[row.Role] = row.Count
	}
	r.db.Model(&models.User{}).Where("role = ? AND is_online = ?", domain.RoleServiceProvider, true).Count(&s.OnlineProviders)
	r.db.Model(&models.User{}).Where("is_banned = ?", true).Count(&s.BannedUsers)

	var statuses []struct {
		Status string
		Count  int64
	}
	r.db.Model(&models.EmergencyRequest{}).Select("status, COUNT(*) as count").Group("status").Scan(&statuses)
	for _, row := range statuses {
		s.EmergenciesByStatus[row.Status] = row.Count
	}
	r.db.Model(&models.Order{}).Count(&s.TotalOrders)
	r.db.Model(&models.Product{}).Count(&s.TotalProducts)

	var rev struct{ Total int64 }
	r.db.Model(&models.Payment{}).Select("COALESCE(SUM(amount), 0) as total").Where("status = ?", domain.PaymentCompleted).Scan(&rev)
	s.TotalRevenue = rev.Total
	return &s, nil
}
