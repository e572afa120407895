package models

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	VendorID  string    `gorm:"size:36;not null;index" json:"vendorId"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Category  string    `gorm:"size:100;index" json:"category"`
	Price     float64   `gorm:"not null" json:"price"`
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Images []ProductImage `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images"`
	Vendor *User          `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	p.ID = ensureID(p.ID)
	return nil
}

type ProductImage struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	ProductID string `gorm:"size:36;not null;index" json:"productId"`
	ImageURL  string `gorm:"size:512;not null" json:"imageUrl"`
}

func (i *ProductImage) BeforeCreate(tx *gorm.DB) error {
	i.ID = ensureID(i.ID)
	return nil
}
