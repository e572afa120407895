package models

import (
	"time"

	"roadassist/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	Name              string     `gorm:"size:128;not null" json:"name"`
	Email             string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone             string     `gorm:"uniqueIndex;size:32;not null" json:"phone"`
	PasswordHash      string     `gorm:"size:255" json:"-"`
	Role              string     `gorm:"size:20;not null;index" json:"role"` // USER | VENDOR | SERVICE_PROVIDER | ADMIN
	ProfileImage      string     `gorm:"size:512" json:"profileImage"`
	CompanyName       string     `gorm:"size:255" json:"companyName,omitempty"`
	Services          string     `gorm:"type:text" json:"services,omitempty"`
	Latitude          float64    `gorm:"index:idx_users_lat_lng" json:"latitude"`
	Longitude         float64    `gorm:"index:idx_users_lat_lng" json:"longitude"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
	IsOnline          bool       `gorm:"default:false;index" json:"isOnline"`
	LastSeen          *time.Time `json:"lastSeen,omitempty"`
	IsBanned          bool       `gorm:"default:false" json:"isBanned"`
	BanReason         string     `gorm:"size:512" json:"banReason,omitempty"`
	GoogleID          *string    `gorm:"uniqueIndex;size:255" json:"-"`
	FCMToken          string     `gorm:"size:512" json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	Location *UserLocation `gorm:"foreignKey:UserID" json:"location,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.ID = ensureID(u.ID)
	return nil
}

func (u User) Coordinates() (float64, float64) { return u.Latitude, u.Longitude }

func (u *User) IsProvider() bool { return u.Role == domain.RoleServiceProvider }
func (u *User) IsVendor() bool   { return u.Role == domain.RoleVendor }
func (u *User) IsAdmin() bool    { return u.Role == domain.RoleAdmin }
