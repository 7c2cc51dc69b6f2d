package enquiry

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
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates the referenced enquiry does not exist.
	ErrNotFound = errors.New("enquiry: not found")
)

// ServiceError tags enquiry failures with a dotted operation.reason code.
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
	opServiceNew   = "enquiry.service.new"
	opCreate       = "enquiry.create"
	opList         = "enquiry.list"
	opUpdateStatus = "enquiry.update_status"
	opDelete       = "enquiry.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues store-assigned enquiry identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the enquiry service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages inbound vendor and banquet enquiries.
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

// Create persists a new enquiry of the given kind in state new. The submitted
// form body is stored verbatim.
func (s *Service) Create(ctx context.Context, kind Kind, submission map[string]any) (*Enquiry, error) {
	if _, err := ParseKind(kind.String()); err != nil {
		return nil, newServiceError(opCreate, "invalid_kind", err)
	}

	if submission == nil {
		submission = map[string]any{}
	}
	encoded, err := json.Marshal(submission)
	if err != nil {
		s.logError(opCreate, "encode_failed", err, zap.String("kind", kind.String()))
		return nil, newServiceError(opCreate, "encode_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("kind", kind.String()))
		return nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC().Format(time.RFC3339)
	record := Enquiry{
		ID:             id,
		Kind:           kind,
		Status:         StatusNew,
		SubmissionJSON: string(encoded),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("kind", kind.String()))
		return nil, newServiceError(opCreate, "insert_failed", err)
	}
	return &record, nil
}

// ListByKind returns every enquiry of the given kind, newest first.
func (s *Service) ListByKind(ctx context.Context, kind Kind) ([]Enquiry, error) {
	if _, err := ParseKind(kind.String()); err != nil {
		return nil, newServiceError(opList, "invalid_kind", err)
	}

	enquiries := []Enquiry{}
	if err := s.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("created_at DESC").
		Find(&enquiries).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("kind", kind.String()))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return enquiries, nil
}

// UpdateStatus transitions an enquiry to newStatus and refreshes updatedAt.
func (s *Service) UpdateStatus(ctx context.Context, id string, newStatus Status) (*Enquiry, error) {
	if _, err := ParseStatus(newStatus.String()); err != nil {
		return nil, newServiceError(opUpdateStatus, "invalid_status", err)
	}

	var record Enquiry
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opUpdateStatus, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opUpdateStatus, "query_failed", err, zap.String("enquiry_id", id))
		return nil, newServiceError(opUpdateStatus, "query_failed", err)
	}

	updatedAt := s.clock().UTC().Format(time.RFC3339)
	updates := map[string]any{
		"status":     newStatus,
		"updated_at": updatedAt,
	}
	if err := s.db.WithContext(ctx).
		Model(&Enquiry{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		s.logError(opUpdateStatus, "save_failed", err, zap.String("enquiry_id", id))
		return nil, newServiceError(opUpdateStatus, "save_failed", err)
	}

	record.Status = newStatus
	record.UpdatedAt = updatedAt
	return &record, nil
}

// Delete removes an enquiry. Deleting an absent enquiry is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&Enquiry{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("enquiry_id", id))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
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
	s.logger.Error("enquiry service error", attrs...)
}
