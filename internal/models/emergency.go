package models

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// EmergencyRequest is a roadside assistance request. Status only moves
// forward: PENDING -> INPROGRESS -> COMPLETED.
type EmergencyRequest struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"size:36;not null;index" json:"userId"`
	VehicleID      string     `gorm:"size:36;not null;index" json:"vehicleId"`
	ProviderID     *string    `gorm:"size:36;index" json:"providerId"`
	AssistanceType string     `gorm:"size:64;not null" json:"assistanceType"`
	Description    string     `gorm:"type:text" json:"description"`
	Status         string     `gorm:"size:20;not null;index" json:"status"`
	Latitude       float64    `gorm:"not null;index:idx_emergency_lat_lng" json:"latitude"`
	Longitude      float64    `gorm:"not null;index:idx_emergency_lat_lng" json:"longitude"`
	Location       string     `gorm:"size:64" json:"location"` // "lat,lng"
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	User     *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Vehicle  *Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	Provider *User    `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
}

func (EmergencyRequest) TableName() string {
	return "emergency_requests"
}

func (e *EmergencyRequest) BeforeCreate(tx *gorm.DB) error {
	e.ID = ensureID(e.ID)
	if e.Location == "" {
		e.Location = fmt.Sprintf("%v,%v", e.Latitude, e.Longitude)
	}
	return nil
}

func (e EmergencyRequest) Coordinates() (float64, float64) { return e.Latitude, e.Longitude }

func itoa(n int) string { return strconv.Itoa(n) }
