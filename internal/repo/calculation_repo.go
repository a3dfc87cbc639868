// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Calculation model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/domain"
)

// CreateCalculation inserts a calculation row. ProjectID may be nil for an
// unlinked result.
func CreateCalculation(ctx context.Context, db *gorm.DB, c *domain.Calculation) (*domain.Calculation, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// LinkCalculationToProject sets the project reference on an existing
// calculation. Returns ErrNotFound when the calculation does not exist.
func LinkCalculationToProject(ctx context.Context, db *gorm.DB, calcID, projectID uint) error {
	res := db.WithContext(ctx).
		Model(&domain.Calculation{}).
		Where("id = ?", calcID).
		Update("project_id", projectID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCalculationsForProjectByUser returns the calculations a given user
// has linked to the project, most recent first.
func ListCalculationsForProjectByUser(ctx context.Context, db *gorm.DB, projectID uint, userID int64) ([]domain.Calculation, error) {
	var out []domain.Calculation
	err := db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
