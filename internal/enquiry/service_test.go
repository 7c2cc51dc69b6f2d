package enquiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("enquiry-%d", p.next), nil
}

func newTestService(t *testing.T, clock func() time.Time) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Enquiry{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}

func TestCreateStartsInStateNew(t *testing.T) {
	now := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)
	service, _ := newTestService(t, func() time.Time { return now })

	record, err := service.Create(context.Background(), KindVendor, map[string]any{
		"name":    "B",
		"contact": "+1-555-0100",
		"message": "Do you photograph winter weddings?",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if record.Status != StatusNew {
		t.Fatalf("expected status new, got %q", record.Status)
	}
	if record.Kind != KindVendor {
		t.Fatalf("expected vendor kind, got %q", record.Kind)
	}
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	service, _ := newTestService(t, time.Now)

	_, err := service.Create(context.Background(), Kind("caterer"), map[string]any{})
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestListByKindSeparatesInboxes(t *testing.T) {
	current := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)
	service, _ := newTestService(t, func() time.Time { return current })

	if _, err := service.Create(context.Background(), KindVendor, map[string]any{"name": "vendor-enquiry"}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	current = current.Add(time.Minute)
	banquet, err := service.Create(context.Background(), KindBanquet, map[string]any{"name": "banquet-enquiry"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	listed, err := service.ListByKind(context.Background(), KindBanquet)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != banquet.ID {
		t.Fatalf("expected only the banquet enquiry: %#v", listed)
	}
}

func TestUpdateStatusValidatesAndTransitions(t *testing.T) {
	current := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)
	service, _ := newTestService(t, func() time.Time { return current })

	record, err := service.Create(context.Background(), KindBanquet, map[string]any{"name": "B"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if _, err := service.UpdateStatus(context.Background(), record.ID, Status("resolved")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := service.UpdateStatus(context.Background(), "missing-id", StatusContacted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	current = current.Add(time.Hour)
	updated, err := service.UpdateStatus(context.Background(), record.ID, StatusContacted)
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Status != StatusContacted {
		t.Fatalf("expected contacted status, got %q", updated.Status)
	}
	if updated.UpdatedAt == record.UpdatedAt {
		t.Fatalf("updatedAt should change on transition")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	service, _ := newTestService(t, time.Now)

	record, err := service.Create(context.Background(), KindVendor, map[string]any{"name": "B"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if err := service.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := service.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}

	listed, err := service.ListByKind(context.Background(), KindVendor)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty listing after delete, got %d", len(listed))
	}
}
