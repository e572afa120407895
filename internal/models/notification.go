package models

import (
	"time"

	"gorm.io/gorm"
)

type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	Type      string    `gorm:"size:50;not null;index" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Data      string    `gorm:"type:text" json:"data,omitempty"` // JSON payload
	IsRead    bool      `gorm:"default:false;index" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	n.ID = ensureID(n.ID)
	return nil
}
