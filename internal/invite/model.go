package invite

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultWeddingID is the sentinel identifier used by single-tenant deployments.
const DefaultWeddingID = "main"

const maxIdentifierLength = 190

// ErrInvalidWeddingID indicates that a wedding identifier is empty or exceeds storage bounds.
var ErrInvalidWeddingID = errors.New("invite: invalid wedding id")

// WeddingID represents a validated wedding microsite identifier.
type WeddingID string

// NewWeddingID validates raw input and returns a WeddingID.
func NewWeddingID(rawInput string) (WeddingID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidWeddingID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidWeddingID, maxIdentifierLength)
	}
	return WeddingID(trimmed), nil
}

// String returns the underlying string identifier.
func (id WeddingID) String() string {
	return string(id)
}

// WeddingRecord is the persisted microsite row. The full content document is kept
// as a JSON payload column; is_enabled is denormalized for dashboard queries.
type WeddingRecord struct {
	WeddingID        string `gorm:"column:wedding_id;primaryKey;size:190;not null"`
	DocumentJSON     string `gorm:"column:document_json;type:text;not null"`
	IsEnabled        bool   `gorm:"column:is_enabled;not null;default:false;index"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (WeddingRecord) TableName() string {
	return "weddings"
}

// Record is the service-level view of a wedding microsite document.
type Record struct {
	ID        string
	Document  map[string]any
	IsEnabled bool
}

// Document is the canonical shape of a wedding microsite content document.
// Sections are pointers so that a freshly published site may omit any of them.
type Document struct {
	Theme      *ThemeSection      `json:"theme,omitempty"`
	Invite     *InviteSection     `json:"invite,omitempty"`
	About      *AboutSection      `json:"about,omitempty"`
	WeddingDay *WeddingDaySection `json:"weddingDay,omitempty"`
	LoveStory  *LoveStorySection  `json:"loveStory,omitempty"`
	Planning   *PlanningSection   `json:"planning,omitempty"`
	Rsvp       *RsvpSection       `json:"rsvp,omitempty"`
	Footer     *FooterSection     `json:"footer,omitempty"`
	IsEnabled  bool               `json:"isEnabled"`
}

// ToMap converts the typed document into the map form the service persists.
func (d Document) ToMap() (map[string]any, error) {
	encoded, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	document := map[string]any{}
	if err := json.Unmarshal(encoded, &document); err != nil {
		return nil, err
	}
	return document, nil
}

// ThemeSection carries the four CSS color values of the microsite theme.
type ThemeSection struct {
	TitleColor       string `json:"titleColor,omitempty"`
	NameColor        string `json:"nameColor,omitempty"`
	ButtonColor      string `json:"buttonColor,omitempty"`
	ButtonHoverColor string `json:"buttonHoverColor,omitempty"`
}

// Link is an outbound href with its display label.
type Link struct {
	Href  string `json:"href,omitempty"`
	Label string `json:"label,omitempty"`
}

// InviteSection is the hero section of the microsite.
type InviteSection struct {
	Title    string `json:"title,omitempty"`
	NameOne  string `json:"nameOne,omitempty"`
	NameTwo  string `json:"nameTwo,omitempty"`
	ImageOne string `json:"imageOne,omitempty"`
	ImageTwo string `json:"imageTwo,omitempty"`
	Link     *Link  `json:"link,omitempty"`
}

// SocialLink points at a social-media profile.
type SocialLink struct {
	Platform string `json:"platform,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Person describes one half of the couple on the about section.
type Person struct {
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Image       string       `json:"image,omitempty"`
	Social      []SocialLink `json:"social,omitempty"`
}

// AboutSection introduces the couple.
type AboutSection struct {
	Subtitle    string  `json:"subtitle,omitempty"`
	Title       string  `json:"title,omitempty"`
	PersonOne   *Person `json:"personOne,omitempty"`
	PersonTwo   *Person `json:"personTwo,omitempty"`
	CouplePhoto string  `json:"couplePhoto,omitempty"`
}

// WeddingDaySection announces the date. The service stamps createdOn/updatedOn
// here on every write, mirroring where the stored document keeps its timestamps.
type WeddingDaySection struct {
	Background string   `json:"background,omitempty"`
	HeadingOne string   `json:"headingOne,omitempty"`
	HeadingTwo string   `json:"headingTwo,omitempty"`
	Date       string   `json:"date,omitempty"`
	Images     []string `json:"images,omitempty"`
	CreatedOn  string   `json:"createdOn,omitempty"`
	UpdatedOn  string   `json:"updatedOn,omitempty"`
}

// LoveStoryItem is one milestone on the love-story timeline.
type LoveStoryItem struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// LoveStorySection is the ordered love-story timeline.
type LoveStorySection struct {
	Title    string          `json:"title,omitempty"`
	Subtitle string          `json:"subtitle,omitempty"`
	Items    []LoveStoryItem `json:"items,omitempty"`
}

// EventItem is one entry of the wedding-day schedule.
type EventItem struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Date  string `json:"date,omitempty"`
	Venue string `json:"venue,omitempty"`
	Time  string `json:"time,omitempty"`
	Phone string `json:"phone,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// PlanningSection lists the schedule along with the venue map.
type PlanningSection struct {
	MapURL   string      `json:"mapUrl,omitempty"`
	Title    string      `json:"title,omitempty"`
	Subtitle string      `json:"subtitle,omitempty"`
	Events   []EventItem `json:"events,omitempty"`
}

// RsvpSection configures the RSVP page chrome.
type RsvpSection struct {
	Background string `json:"background,omitempty"`
}

// FooterSection closes out the microsite.
type FooterSection struct {
	Background  string       `json:"background,omitempty"`
	CoupleNames string       `json:"coupleNames,omitempty"`
	Subtitle    string       `json:"subtitle,omitempty"`
	Social      []SocialLink `json:"social,omitempty"`
}
