package users

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/auth"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
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
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, db
}

func TestResolveCanonicalUserIDCreatesIdentity(t *testing.T) {
	service, db := newTestService(t)

	claims := auth.SessionClaims{
		UserID:          "provider:subject-1",
		UserEmail:       "admin@example.com",
		UserDisplayName: "Admin",
		UserRoles:       []string{"admin"},
	}
	claims.Subject = "subject-1"

	userID, err := service.ResolveCanonicalUserID(claims)
	if err != nil {
		t.Fatalf("unexpected resolution error: %v", err)
	}
	if userID != "subject-1" {
		t.Fatalf("unexpected canonical id: %s", userID)
	}

	var identity Identity
	if err := db.Where("provider = ? AND subject = ?", "provider", "subject-1").First(&identity).Error; err != nil {
		t.Fatalf("expected persisted identity: %v", err)
	}
	if identity.Email != "admin@example.com" {
		t.Fatalf("unexpected email: %s", identity.Email)
	}
	if identity.RolesCSV != "admin" {
		t.Fatalf("unexpected roles: %s", identity.RolesCSV)
	}
}

func TestResolveCanonicalUserIDUsesCacheOnRepeatLookups(t *testing.T) {
	service, db := newTestService(t)

	claims := auth.SessionClaims{UserID: "subject-2"}
	claims.Subject = "subject-2"

	first, err := service.ResolveCanonicalUserID(claims)
	if err != nil {
		t.Fatalf("unexpected resolution error: %v", err)
	}

	// Remove the row; a cached resolution must still succeed.
	if err := db.Where("subject = ?", "subject-2").Delete(&Identity{}).Error; err != nil {
		t.Fatalf("failed to delete identity row: %v", err)
	}

	second, err := service.ResolveCanonicalUserID(claims)
	if err != nil {
		t.Fatalf("expected cached resolution to succeed: %v", err)
	}
	if first != second {
		t.Fatalf("cached id should match: %s vs %s", first, second)
	}
}

func TestResolveCanonicalUserIDRejectsEmptyClaims(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.ResolveCanonicalUserID(auth.SessionClaims{}); err != ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}
