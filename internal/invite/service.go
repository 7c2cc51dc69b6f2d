package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/cache"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingCache    = errors.New("cache is required")
	noOpLogger         = zap.NewNop()

	// ErrNotFound indicates the referenced wedding document does not exist.
	ErrNotFound = errors.New("invite: wedding not found")
)

// ServiceError tags invite failures with a dotted operation.reason code so the
// route layer can switch on the wrapped sentinel instead of message text.
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
	opServiceNew = "invite.service.new"
	opGet        = "invite.get"
	opCreate     = "invite.create"
	opUpdate     = "invite.update"
	opDelete     = "invite.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the invite record service.
type ServiceConfig struct {
	Database *gorm.DB
	Cache    cache.Cache
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the single source of truth for wedding microsite content documents.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Cache == nil {
		return nil, newServiceError(opServiceNew, "missing_cache", errMissingCache)
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
		db:     cfg.Database,
		cache:  cfg.Cache,
		clock:  clock,
		logger: logger,
	}, nil
}

func cacheKey(id WeddingID) string {
	return "wedding:" + id.String()
}

// GetByID returns the microsite document for id, or nil when it does not exist.
// Unless forceRefresh is set, a cached copy is served when present.
func (s *Service) GetByID(ctx context.Context, id WeddingID, forceRefresh bool) (*Record, error) {
	if !forceRefresh {
		cached, ok, err := s.cache.Get(ctx, cacheKey(id))
		if err != nil {
			s.logger.Warn("invite cache read failed", zap.String("wedding_id", id.String()), zap.Error(err))
		} else if ok {
			record, err := recordFromDocumentJSON(id, cached)
			if err == nil {
				return record, nil
			}
			s.logger.Warn("invite cache entry corrupt", zap.String("wedding_id", id.String()), zap.Error(err))
		}
	}

	var row WeddingRecord
	err := s.db.WithContext(ctx).
		Where("wedding_id = ?", id.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opGet, "query_failed", err)
	}

	record, err := recordFromDocumentJSON(id, []byte(row.DocumentJSON))
	if err != nil {
		s.logError(opGet, "decode_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opGet, "decode_failed", err)
	}

	if err := s.cache.Set(ctx, cacheKey(id), []byte(row.DocumentJSON)); err != nil {
		s.logger.Warn("invite cache write failed", zap.String("wedding_id", id.String()), zap.Error(err))
	}
	return record, nil
}

// CreateByID unconditionally overwrites the document at id, stamping creation and
// update timestamps under weddingDay, then re-reads the persisted row so the
// returned value reflects exactly what the store holds.
func (s *Service) CreateByID(ctx context.Context, id WeddingID, document map[string]any) (*Record, error) {
	now := s.clock().UTC()
	stamped := mergeDocuments(document, nil)
	stampWeddingDay(stamped, now, true)

	encoded, err := json.Marshal(stamped)
	if err != nil {
		s.logError(opCreate, "encode_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opCreate, "encode_failed", err)
	}

	row := WeddingRecord{
		WeddingID:        id.String(),
		DocumentJSON:     string(encoded),
		IsEnabled:        documentEnabled(stamped),
		CreatedAtSeconds: now.Unix(),
		UpdatedAtSeconds: now.Unix(),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		s.logError(opCreate, "save_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opCreate, "save_failed", err)
	}

	return s.readBack(ctx, opCreate, id)
}

// UpdateByID merge-writes partial into the existing document. Fields absent from
// partial are untouched; updatedOn under weddingDay is always refreshed.
func (s *Service) UpdateByID(ctx context.Context, id WeddingID, partial map[string]any) (*Record, error) {
	var row WeddingRecord
	err := s.db.WithContext(ctx).
		Where("wedding_id = ?", id.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opUpdate, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opUpdate, "query_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opUpdate, "query_failed", err)
	}

	existing := map[string]any{}
	if err := json.Unmarshal([]byte(row.DocumentJSON), &existing); err != nil {
		s.logError(opUpdate, "decode_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opUpdate, "decode_failed", err)
	}

	now := s.clock().UTC()
	merged := mergeDocuments(existing, partial)
	stampWeddingDay(merged, now, false)

	encoded, err := json.Marshal(merged)
	if err != nil {
		s.logError(opUpdate, "encode_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opUpdate, "encode_failed", err)
	}

	updates := map[string]any{
		"document_json": string(encoded),
		"is_enabled":    documentEnabled(merged),
		"updated_at_s":  now.Unix(),
	}
	if err := s.db.WithContext(ctx).
		Model(&WeddingRecord{}).
		Where("wedding_id = ?", id.String()).
		Updates(updates).Error; err != nil {
		s.logError(opUpdate, "save_failed", err, zap.String("wedding_id", id.String()))
		return nil, newServiceError(opUpdate, "save_failed", err)
	}

	return s.readBack(ctx, opUpdate, id)
}

// DeleteByID removes the document and evicts its cache entry. Deleting an absent
// document is not an error.
func (s *Service) DeleteByID(ctx context.Context, id WeddingID) error {
	if err := s.db.WithContext(ctx).
		Where("wedding_id = ?", id.String()).
		Delete(&WeddingRecord{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("wedding_id", id.String()))
		return newServiceError(opDelete, "delete_failed", err)
	}
	if err := s.cache.Invalidate(ctx, cacheKey(id)); err != nil {
		s.logger.Warn("invite cache invalidation failed", zap.String("wedding_id", id.String()), zap.Error(err))
	}
	return nil
}

// GetMain returns the single-tenant document.
func (s *Service) GetMain(ctx context.Context, forceRefresh bool) (*Record, error) {
	return s.GetByID(ctx, DefaultWeddingID, forceRefresh)
}

// CreateMain overwrites the single-tenant document.
func (s *Service) CreateMain(ctx context.Context, document map[string]any) (*Record, error) {
	return s.CreateByID(ctx, DefaultWeddingID, document)
}

// UpdateMain merge-updates the single-tenant document.
func (s *Service) UpdateMain(ctx context.Context, partial map[string]any) (*Record, error) {
	return s.UpdateByID(ctx, DefaultWeddingID, partial)
}

// DeleteMain removes the single-tenant document.
func (s *Service) DeleteMain(ctx context.Context) error {
	return s.DeleteByID(ctx, DefaultWeddingID)
}

// readBack re-reads the persisted row after a write. The cache is only written
// here, on a successful read-back, so a failed write leaves it stale but intact.
func (s *Service) readBack(ctx context.Context, operation string, id WeddingID) (*Record, error) {
	record, err := s.GetByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.logError(operation, "readback_missing", ErrNotFound, zap.String("wedding_id", id.String()))
		return nil, newServiceError(operation, "readback_missing", ErrNotFound)
	}
	return record, nil
}

// stampWeddingDay writes the server timestamps nested under weddingDay, matching
// where the stored document keeps them.
func stampWeddingDay(document map[string]any, now time.Time, includeCreated bool) {
	stamp := now.Format(time.RFC3339)
	if includeCreated {
		SetField(document, "weddingDay.createdOn", stamp)
	}
	SetField(document, "weddingDay.updatedOn", stamp)
}

func documentEnabled(document map[string]any) bool {
	enabled, ok := document["isEnabled"].(bool)
	return ok && enabled
}

func recordFromDocumentJSON(id WeddingID, encoded []byte) (*Record, error) {
	document := map[string]any{}
	if err := json.Unmarshal(encoded, &document); err != nil {
		return nil, err
	}
	return &Record{
		ID:        id.String(),
		Document:  document,
		IsEnabled: documentEnabled(document),
	}, nil
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
	s.logger.Error("invite service error", attrs...)
}
