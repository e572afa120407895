package models

import (
	"time"

	"gorm.io/gorm"
)

type Payment struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"size:36;not null;index" json:"userId"`
	OrderID     *string    `gorm:"size:36;index" json:"orderId,omitempty"`
	Amount      int64      `gorm:"not null" json:"amount"` // minor units (paisa / cents)
	Currency    string     `gorm:"size:3;default:'NPR'" json:"currency"`
	Provider    string     `gorm:"size:20;not null" json:"provider"` // khalti | stripe
	ProviderRef string     `gorm:"size:255;uniqueIndex" json:"providerRef"`
	Status      string     `gorm:"size:20;not null;index" json:"status"` // PENDING, COMPLETED, FAILED
	Metadata    string     `gorm:"type:text" json:"metadata,omitempty"`  // JSON
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	p.ID = ensureID(p.ID)
	return nil
}
