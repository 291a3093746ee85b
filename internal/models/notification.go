package models

import "time"

// Notification is an in-app notification row written when a travel request
// changes status. Delivery is best-effort; rows are written by the dispatcher
// worker, never inside the transition's transaction.
type Notification struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	UserID          uint         `gorm:"not null;index" json:"user_id"`
	TravelRequestID uint         `gorm:"not null;index" json:"travel_request_id"`
	Status          TravelStatus `gorm:"type:varchar(20);not null" json:"status"`
	Destination     string       `gorm:"not null" json:"destination"`
	Message         string       `gorm:"type:text;not null" json:"message"`
	ReadAt          *time.Time   `json:"read_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}
