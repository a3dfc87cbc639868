// Package services – ProjectService
//
// Projects are created only through the admin intake flow and are immutable
// afterwards. Address works as the de-facto display key: menus list projects
// by address and lookups resolve to the most recent match. Uniqueness is not
// enforced; first match wins.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/domain"
)

// ProjectRepo defines the repository contract required by ProjectService.
type ProjectRepo interface {
	CreateProject(ctx context.Context, db *gorm.DB, p *domain.Project) (*domain.Project, error)
	ListProjects(ctx context.Context, db *gorm.DB) ([]domain.Project, error)
	GetProject(ctx context.Context, db *gorm.DB, id uint) (*domain.Project, error)
	FindProjectByAddress(ctx context.Context, db *gorm.DB, address string) (*domain.Project, error)
}

// ProjectService provides project intake and lookups.
type ProjectService struct {
	DB   *gorm.DB
	Repo ProjectRepo
}

// CreateProjectInput carries the fields collected by the intake flow.
type CreateProjectInput struct {
	Address       string
	Description   string
	DesignPDFPath string // empty when no attachment survived
	LockCode      string
	CreatedBy     int64
}

// Create persists a new project. The address must be non-empty; everything
// else is stored as collected.
func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (*domain.Project, error) {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, ErrEmptyAddress
	}
	return s.Repo.CreateProject(ctx, s.DB, &domain.Project{
		Address:       address,
		Description:   strings.TrimSpace(in.Description),
		DesignPDFPath: in.DesignPDFPath,
		LockCode:      in.LockCode,
		CreatedBy:     in.CreatedBy,
	})
}

// List returns all projects, most recent first.
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.Repo.ListProjects(ctx, s.DB)
}

// Get fetches a project by id, mapping a miss to ErrProjectNotFound.
func (s *ProjectService) Get(ctx context.Context, id uint) (*domain.Project, error) {
	p, err := s.Repo.GetProject(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	return p, err
}

// FindByAddress resolves an address to the most recently created matching
// project, mapping a miss to ErrProjectNotFound.
func (s *ProjectService) FindByAddress(ctx context.Context, address string) (*domain.Project, error) {
	p, err := s.Repo.FindProjectByAddress(ctx, s.DB, strings.TrimSpace(address))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	return p, err
}
