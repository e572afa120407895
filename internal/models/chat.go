package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatMessage is immutable after creation except for IsRead.
type ChatMessage struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	SenderID   string    `gorm:"size:36;not null;index" json:"senderId"`
	ReceiverID string    `gorm:"size:36;not null;index" json:"receiverId"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	IsRead     bool      `gorm:"default:false;index" json:"isRead"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	m.ID = ensureID(m.ID)
	return nil
}
