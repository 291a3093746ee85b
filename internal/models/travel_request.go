package models

import (
	"time"

	"gorm.io/gorm"
)

// TravelStatus defines lifecycle states for travel requests.
type TravelStatus string

const (
	// TravelStatusRequested indicates the request is awaiting review.
	TravelStatusRequested TravelStatus = "requested"
	// TravelStatusApproved indicates the request was accepted by an admin.
	TravelStatusApproved TravelStatus = "approved"
	// TravelStatusCancelled indicates the request was cancelled, either by an
	// admin or by the owner after approval.
	TravelStatusCancelled TravelStatus = "cancelled"
)

// Valid reports whether s is a known travel request status.
func (s TravelStatus) Valid() bool {
	switch s {
	case TravelStatusRequested, TravelStatusApproved, TravelStatusCancelled:
		return true
	}
	return false
}

// SelfCancellationReason is the fixed reason recorded when the owner cancels
// an approved request through the self-service path.
const SelfCancellationReason = "cancelled by user after approval"

// SelfCancelLeadTime is how long before departure the self-service
// cancellation window closes.
const SelfCancelLeadTime = 24 * time.Hour

// TravelRequest represents one employee travel request.
type TravelRequest struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"user"`
	// ApplicantName is a snapshot of the requester's display name at creation.
	ApplicantName      string       `gorm:"not null" json:"applicant_name"`
	Destination        string       `gorm:"not null" json:"destination"`
	DepartureDate      time.Time    `gorm:"not null;index" json:"departure_date"`
	ReturnDate         time.Time    `gorm:"not null" json:"return_date"`
	Status             TravelStatus `gorm:"type:varchar(20);not null;default:'requested';index" json:"status"`
	Reason             string       `gorm:"type:text" json:"reason,omitempty"`
	CancellationReason *string      `gorm:"type:text" json:"cancellation_reason,omitempty"`
	ApprovedAt         *time.Time   `json:"approved_at,omitempty"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// StatusChange is the full derived field set for one status transition. The
// three nullable columns are always recomputed together from the target
// status, so a transition can never leave a stale approved_at or
// cancellation_reason behind.
type StatusChange struct {
	Status             TravelStatus
	ApprovedAt         *time.Time
	CancelledAt        *time.Time
	CancellationReason *string
}

// ApprovedChange builds the transition to the approved state.
func ApprovedChange(now time.Time) StatusChange {
	return StatusChange{
		Status:     TravelStatusApproved,
		ApprovedAt: &now,
	}
}

// CancelledChange builds the transition to the cancelled state with the given
// reason.
func CancelledChange(now time.Time, reason string) StatusChange {
	return StatusChange{
		Status:             TravelStatusCancelled,
		CancelledAt:        &now,
		CancellationReason: &reason,
	}
}

// Fields flattens the change to the column map persisted by the repository.
// Nil members translate to SQL NULL, clearing the columns of any prior state.
func (c StatusChange) Fields() map[string]interface{} {
	return map[string]interface{}{
		"status":              c.Status,
		"approved_at":         c.ApprovedAt,
		"cancelled_at":        c.CancelledAt,
		"cancellation_reason": c.CancellationReason,
	}
}

// ApplyTo writes the change onto an in-memory request.
func (c StatusChange) ApplyTo(tr *TravelRequest) {
	tr.Status = c.Status
	tr.ApprovedAt = c.ApprovedAt
	tr.CancelledAt = c.CancelledAt
	tr.CancellationReason = c.CancellationReason
}

// CanBeCancelled reports whether the owner may still cancel this request
// through the self-service path: it must be approved and the departure must be
// more than SelfCancelLeadTime away.
func (tr *TravelRequest) CanBeCancelled(now time.Time) bool {
	if tr.Status != TravelStatusApproved {
		return false
	}
	return tr.DepartureDate.Add(-SelfCancelLeadTime).After(now)
}
