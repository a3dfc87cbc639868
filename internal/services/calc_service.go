// Package services – CalculationService
//
// Runs the material rule for a user, persists the result (unlinked first,
// optionally linked to a project right afterwards), and renders calculation
// listings for project details. The scoping rule for listings is
// deliberate: admins see the calculations the project owner linked to the
// project, workers see only their own.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/domain"
	"github.com/finishworks/crewbot/internal/materials"
)

// CalculationRepo defines the repository contract required by
// CalculationService.
type CalculationRepo interface {
	CreateCalculation(ctx context.Context, db *gorm.DB, c *domain.Calculation) (*domain.Calculation, error)
	LinkCalculationToProject(ctx context.Context, db *gorm.DB, calcID, projectID uint) error
	ListCalculationsForProjectByUser(ctx context.Context, db *gorm.DB, projectID uint, userID int64) ([]domain.Calculation, error)
}

// CalculationService computes and persists material calculations.
type CalculationService struct {
	DB   *gorm.DB
	Repo CalculationRepo
	Calc materials.Calculator
}

// Run computes the quantity for (material, area, thickness), persists an
// unlinked calculation row, and returns it. Unknown materials propagate
// materials.ErrUnknownMaterial.
func (s *CalculationService) Run(ctx context.Context, userID int64, materialType string, area, thickness float64) (*domain.Calculation, error) {
	quantity, err := s.Calc.Compute(materialType, area, thickness)
	if err != nil {
		return nil, err
	}
	return s.Repo.CreateCalculation(ctx, s.DB, &domain.Calculation{
		UserID:       userID,
		MaterialType: materialType,
		Area:         area,
		Thickness:    thickness,
		Quantity:     quantity,
	})
}

// Link attaches a persisted calculation to a project.
func (s *CalculationService) Link(ctx context.Context, calcID, projectID uint) error {
	err := s.Repo.LinkCalculationToProject(ctx, s.DB, calcID, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProjectNotFound
	}
	return err
}

// ListForProject returns the calculations linked to the project by scopeUser.
// The caller decides whose calculations are in scope (project owner for
// admins, the requesting worker for workers).
func (s *CalculationService) ListForProject(ctx context.Context, projectID uint, scopeUser int64) ([]domain.Calculation, error) {
	return s.Repo.ListCalculationsForProjectByUser(ctx, s.DB, projectID, scopeUser)
}

// FormatList renders calculation rows as one listing block.
func FormatList(calcs []domain.Calculation) string {
	lines := make([]string, 0, len(calcs))
	for _, c := range calcs {
		unit := "ед."
		if m, ok := materials.Lookup(strings.ToLower(c.MaterialType)); ok {
			unit = m.Unit
		}
		lines = append(lines, fmt.Sprintf(
			"🧱 %s - %s %s (Площадь: %s м²)",
			c.MaterialType,
			strconv.FormatFloat(c.Quantity, 'f', -1, 64),
			unit,
			strconv.FormatFloat(c.Area, 'f', -1, 64),
		))
	}
	return strings.Join(lines, "\n")
}
