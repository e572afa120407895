package models

import (
	"time"

	"gorm.io/gorm"
)

// UserLocation holds the latest reported position of a user. There is one
// row per user and it is overwritten on every update.
type UserLocation struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"uniqueIndex;size:36;not null" json:"userId"`
	Latitude    float64   `gorm:"not null;index:idx_location_lat_lng" json:"latitude"`
	Longitude   float64   `gorm:"not null;index:idx_location_lat_lng" json:"longitude"`
	IsAvailable bool      `gorm:"not null" json:"isAvailable"`
	LastUpdated time.Time `gorm:"not null;index" json:"lastUpdated"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (UserLocation) TableName() string {
	return "user_locations"
}

func (l *UserLocation) BeforeCreate(tx *gorm.DB) error {
	l.ID = ensureID(l.ID)
	return nil
}

// Position is a coordinate pair as it travels on the wire.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p Position) Coordinates() (float64, float64) { return p.Latitude, p.Longitude }
