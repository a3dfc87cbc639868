// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Project
// model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/domain"
)

// CreateProject inserts a new Project row and returns it with the
// auto-assigned id populated.
func CreateProject(ctx context.Context, db *gorm.DB, p *domain.Project) (*domain.Project, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns all projects with their creators preloaded, most
// recent first. It returns an empty slice when there are none.
func ListProjects(ctx context.Context, db *gorm.DB) ([]domain.Project, error) {
	var out []domain.Project
	err := db.WithContext(ctx).
		Preload("Creator").
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// GetProject fetches a single project by id, or ErrNotFound.
func GetProject(ctx context.Context, db *gorm.DB, id uint) (*domain.Project, error) {
	var p domain.Project
	err := db.WithContext(ctx).Preload("Creator").First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProjectByAddress returns the most recently created project with the
// given address, or ErrNotFound. Addresses are not unique; first match by
// recency wins, which mirrors how the menus present them.
func FindProjectByAddress(ctx context.Context, db *gorm.DB, address string) (*domain.Project, error) {
	var p domain.Project
	err := db.WithContext(ctx).
		Preload("Creator").
		Where("address = ?", address).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
