package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finishworks/crewbot/internal/domain"
)

func TestCreateProject_AssignsID(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.Project{})

	p, err := CreateProject(context.Background(), db, &domain.Project{
		Address:   "ул. Ленина, 5",
		LockCode:  "1234",
		CreatedBy: 99,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected auto-assigned id")
	}
	if p.CreatedAt.IsZero() {
		t.Fatal("CreatedAt must be stamped")
	}
}

func TestListProjects_RecentFirstWithCreator(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.Project{})
	ctx := context.Background()

	if err := UpsertUser(ctx, db, &domain.User{ID: 99, FirstName: "Босс", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	base := time.Now().UTC()
	for i, addr := range []string{"первый", "второй"} {
		_, err := CreateProject(ctx, db, &domain.Project{
			Address:   addr,
			CreatedBy: 99,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}

	got, err := ListProjects(ctx, db)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(got) != 2 || got[0].Address != "второй" {
		t.Fatalf("expected most recent first: %+v", got)
	}
	if got[0].Creator.FirstName != "Босс" {
		t.Fatalf("creator not preloaded: %+v", got[0].Creator)
	}
}

func TestFindProjectByAddress_MostRecentWins(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.Project{})
	ctx := context.Background()

	base := time.Now().UTC()
	old, err := CreateProject(ctx, db, &domain.Project{Address: "ул. Мира, 1", CreatedAt: base})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	fresh, err := CreateProject(ctx, db, &domain.Project{Address: "ул. Мира, 1", CreatedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	got, err := FindProjectByAddress(ctx, db, "ул. Мира, 1")
	if err != nil {
		t.Fatalf("FindProjectByAddress: %v", err)
	}
	if got.ID != fresh.ID || got.ID == old.ID {
		t.Fatalf("expected most recent duplicate, got id %d", got.ID)
	}
}

func TestFindProjectByAddress_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.Project{})
	if _, err := FindProjectByAddress(context.Background(), db, "нет такого"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.Project{})
	if _, err := GetProject(context.Background(), db, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
