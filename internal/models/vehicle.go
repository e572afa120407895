package models

import (
	"time"

	"gorm.io/gorm"
)

type Vehicle struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	Brand     string    `gorm:"size:100;not null" json:"brand"`
	Model     string    `gorm:"size:100;not null" json:"model"`
	Year      int       `gorm:"not null" json:"year"`
	VIN       string    `gorm:"column:vin;uniqueIndex;size:64;not null" json:"vin"`
	Image     string    `gorm:"size:512" json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	v.ID = ensureID(v.ID)
	return nil
}

// Label is "2018 Toyota Corolla".
func (v *Vehicle) Label() string {
	return itoa(v.Year) + " " + v.Brand + " " + v.Model
}
