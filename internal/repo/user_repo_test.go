package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/finishworks/crewbot/internal/domain"
)

// newTestDB opens a throwaway SQLite database and migrates the given models.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Release the file handle before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestUpsertUser_InsertSetsRegisteredAt(t *testing.T) {
	db := newTestDB(t, &domain.User{})

	u := &domain.User{ID: 1, Username: "vasya", FirstName: "Вася", Role: domain.RolePending}
	if err := UpsertUser(context.Background(), db, u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if u.RegisteredAt.IsZero() {
		t.Fatal("RegisteredAt must be stamped on insert")
	}

	got, err := GetUser(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "vasya" || got.Role != domain.RolePending {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestUpsertUser_ConflictRefreshesProfileKeepsRole(t *testing.T) {
	db := newTestDB(t, &domain.User{})

	first := &domain.User{ID: 1, Username: "old", FirstName: "Old", Role: domain.RoleWorker}
	if err := UpsertUser(context.Background(), db, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Re-contact with fresh profile data and a different role in the struct:
	// profile columns update, the stored role must survive.
	second := &domain.User{ID: 1, Username: "new", FirstName: "New", Role: domain.RolePending}
	if err := UpsertUser(context.Background(), db, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := GetUser(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "new" || got.FirstName != "New" {
		t.Fatalf("profile not refreshed: %+v", got)
	}
	if got.Role != domain.RoleWorker {
		t.Fatalf("upsert clobbered the role: %q", got.Role)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	if _, err := GetUser(context.Background(), db, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	db := newTestDB(t, &domain.User{})

	if err := UpsertUser(context.Background(), db, &domain.User{ID: 1, Role: domain.RolePending}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := UpdateUserRole(context.Background(), db, 1, domain.RoleWorker); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	got, _ := GetUser(context.Background(), db, 1)
	if got.Role != domain.RoleWorker {
		t.Fatalf("role not updated: %q", got.Role)
	}

	if err := UpdateUserRole(context.Background(), db, 404, domain.RoleWorker); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestMarkAccessRequested(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	if err := UpsertUser(ctx, db, &domain.User{ID: 1, Role: domain.RolePending}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := MarkAccessRequested(ctx, db, 1); err != nil {
		t.Fatalf("MarkAccessRequested: %v", err)
	}
	got, _ := GetUser(ctx, db, 1)
	if got.AccessRequestedAt == nil || got.AccessRequestedAt.IsZero() {
		t.Fatalf("request time not stamped: %+v", got)
	}

	if err := MarkAccessRequested(ctx, db, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestListUsersByRole_OrderedByRegistration(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	base := time.Now().UTC()
	for i, u := range []*domain.User{
		{ID: 3, Role: domain.RoleWorker},
		{ID: 1, Role: domain.RoleWorker},
		{ID: 2, Role: domain.RolePending},
	} {
		u.RegisteredAt = base.Add(time.Duration(i) * time.Minute)
		if err := UpsertUser(ctx, db, u); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}

	workers, err := ListUsersByRole(ctx, db, domain.RoleWorker)
	if err != nil {
		t.Fatalf("ListUsersByRole: %v", err)
	}
	if len(workers) != 2 || workers[0].ID != 3 || workers[1].ID != 1 {
		t.Fatalf("unexpected list: %+v", workers)
	}
}
