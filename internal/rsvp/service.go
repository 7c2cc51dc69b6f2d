package rsvp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingWeddingID  = errors.New("wedding identifier is required")
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates the referenced response does not exist.
	ErrNotFound = errors.New("rsvp: response not found")
)

// ServiceError tags RSVP failures with a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "rsvp.service.new"
	opList         = "rsvp.list"
	opCreate       = "rsvp.create"
	opUpdateStatus = "rsvp.update_status"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues store-assigned response identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the RSVP service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service creates and transitions guest responses tied to a wedding microsite.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListByWedding returns every response for the wedding, newest first. An unknown
// wedding yields an empty slice, not an error: referential integrity between
// responses and weddings is deliberately not enforced.
func (s *Service) ListByWedding(ctx context.Context, weddingID string) ([]Response, error) {
	if weddingID == "" {
		s.logError(opList, "missing_wedding_id", errMissingWeddingID)
		return nil, newServiceError(opList, "missing_wedding_id", errMissingWeddingID)
	}

	responses := []Response{}
	if err := s.db.WithContext(ctx).
		Where("wedding_id = ?", weddingID).
		Order("created_at DESC").
		Find(&responses).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("wedding_id", weddingID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return responses, nil
}

// Create persists a new response in state pending. The guest fields are stored
// verbatim; any status supplied by the client is discarded.
func (s *Service) Create(ctx context.Context, weddingID string, guestFields map[string]any) (*Response, error) {
	if weddingID == "" {
		s.logError(opCreate, "missing_wedding_id", errMissingWeddingID)
		return nil, newServiceError(opCreate, "missing_wedding_id", errMissingWeddingID)
	}

	fields := make(map[string]any, len(guestFields))
	for key, value := range guestFields {
		if key == "status" {
			continue
		}
		fields[key] = value
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		s.logError(opCreate, "encode_failed", err, zap.String("wedding_id", weddingID))
		return nil, newServiceError(opCreate, "encode_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("wedding_id", weddingID))
		return nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC().Format(time.RFC3339)
	response := Response{
		ID:        id,
		WeddingID: weddingID,
		Status:    StatusPending,
		GuestJSON: string(encoded),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&response).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("wedding_id", weddingID))
		return nil, newServiceError(opCreate, "insert_failed", err)
	}
	return &response, nil
}

// UpdateStatus transitions a response to newStatus and refreshes updatedAt.
// Transitions are unrestricted: any state may move to any other state.
func (s *Service) UpdateStatus(ctx context.Context, rsvpID string, newStatus Status) (*Response, error) {
	if _, err := ParseStatus(newStatus.String()); err != nil {
		return nil, newServiceError(opUpdateStatus, "invalid_status", err)
	}

	var response Response
	err := s.db.WithContext(ctx).
		Where("id = ?", rsvpID).
		Take(&response).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opUpdateStatus, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opUpdateStatus, "query_failed", err, zap.String("rsvp_id", rsvpID))
		return nil, newServiceError(opUpdateStatus, "query_failed", err)
	}

	updatedAt := s.clock().UTC().Format(time.RFC3339)
	updates := map[string]any{
		"status":     newStatus,
		"updated_at": updatedAt,
	}
	if err := s.db.WithContext(ctx).
		Model(&Response{}).
		Where("id = ?", rsvpID).
		Updates(updates).Error; err != nil {
		s.logError(opUpdateStatus, "save_failed", err, zap.String("rsvp_id", rsvpID))
		return nil, newServiceError(opUpdateStatus, "save_failed", err)
	}

	response.Status = newStatus
	response.UpdatedAt = updatedAt
	return &response, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("rsvp service error", attrs...)
}
