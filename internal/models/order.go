package models

import (
	"time"

	"gorm.io/gorm"
)

type Order struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:36;not null;index" json:"userId"`
	ProductID  string    `gorm:"size:36;not null;index" json:"productId"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	TotalPrice float64   `gorm:"not null" json:"totalPrice"`
	Status     string    `gorm:"size:20;not null;index" json:"status"`
	OrderDate  time.Time `gorm:"index" json:"orderDate"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	o.ID = ensureID(o.ID)
	if o.OrderDate.IsZero() {
		o.OrderDate = time.Now()
	}
	return nil
}
