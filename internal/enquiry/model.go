package enquiry

import (
	"errors"
	"fmt"
	"strings"
)

// Kind distinguishes the two enquiry inboxes.
type Kind string

const (
	// KindVendor is an enquiry sent to a vendor listing.
	KindVendor Kind = "vendor"
	// KindBanquet is an enquiry sent to a banquet venue.
	KindBanquet Kind = "banquet"
)

// ErrInvalidKind indicates a kind outside the enumerated set.
var ErrInvalidKind = errors.New("enquiry: invalid kind")

// ParseKind validates raw input against the closed kind set.
func ParseKind(rawInput string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(rawInput))) {
	case KindVendor:
		return KindVendor, nil
	case KindBanquet:
		return KindBanquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, rawInput)
	}
}

// String returns the wire value of the kind.
func (k Kind) String() string {
	return string(k)
}

// Status is the handling state of an enquiry on the dashboard.
type Status string

const (
	// StatusNew is the initial state of every enquiry.
	StatusNew Status = "new"
	// StatusContacted marks an enquiry the team has followed up on.
	StatusContacted Status = "contacted"
	// StatusClosed marks a resolved enquiry.
	StatusClosed Status = "closed"
)

// ErrInvalidStatus indicates a status outside the enumerated set.
var ErrInvalidStatus = errors.New("enquiry: invalid status")

// ParseStatus validates raw input against the closed status set.
func ParseStatus(rawInput string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(rawInput))) {
	case StatusNew:
		return StatusNew, nil
	case StatusContacted:
		return StatusContacted, nil
	case StatusClosed:
		return StatusClosed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, rawInput)
	}
}

// String returns the wire value of the status.
func (s Status) String() string {
	return string(s)
}

// Enquiry is a persisted customer enquiry. As with RSVP guest fields, the
// submitted form body is kept as an open JSON object next to the fixed columns.
type Enquiry struct {
	ID             string `gorm:"column:id;primaryKey;size:190;not null"`
	Kind           Kind   `gorm:"column:kind;size:20;not null;index:idx_enquiries_kind_created,priority:1"`
	Status         Status `gorm:"column:status;size:20;not null"`
	SubmissionJSON string `gorm:"column:submission_json;type:text;not null"`
	CreatedAt      string `gorm:"column:created_at;size:40;not null;index:idx_enquiries_kind_created,priority:2"`
	UpdatedAt      string `gorm:"column:updated_at;size:40;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Enquiry) TableName() string {
	return "enquiries"
}
