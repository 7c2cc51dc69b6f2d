package rsvp

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the attendance state of a guest response.
type Status string

const (
	// StatusPending is the initial state of every response.
	StatusPending Status = "pending"
	// StatusConfirmed marks a guest as attending.
	StatusConfirmed Status = "confirmed"
	// StatusDeclined marks a guest as not attending.
	StatusDeclined Status = "declined"
)

// ErrInvalidStatus indicates a status value outside the enumerated set.
var ErrInvalidStatus = errors.New("rsvp: invalid status")

// ParseStatus validates raw input against the closed status set.
func ParseStatus(rawInput string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(rawInput))) {
	case StatusPending:
		return StatusPending, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusDeclined:
		return StatusDeclined, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, rawInput)
	}
}

// String returns the wire value of the status.
func (s Status) String() string {
	return string(s)
}

// Response is a persisted guest RSVP. Guest-supplied fields are kept as an open
// JSON object: different microsites request different form fields, so the service
// stays schema-agnostic for everything outside the fixed columns. Timestamps are
// RFC3339 strings, which sort chronologically under the created_at index.
type Response struct {
	ID        string `gorm:"column:id;primaryKey;size:190;not null"`
	WeddingID string `gorm:"column:wedding_id;size:190;not null;index:idx_rsvp_wedding_created,priority:1"`
	Status    Status `gorm:"column:status;size:20;not null"`
	GuestJSON string `gorm:"column:guest_json;type:text;not null"`
	CreatedAt string `gorm:"column:created_at;size:40;not null;index:idx_rsvp_wedding_created,priority:2"`
	UpdatedAt string `gorm:"column:updated_at;size:40;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Response) TableName() string {
	return "rsvp_responses"
}
