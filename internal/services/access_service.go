// Package services – AccessService
//
// This file implements the AccessService, which owns role assignment: user
// registration on first contact, the allow-list role coercion that runs on
// every session start, access requests from newcomers, and admin
// approve/reject resolution with target notification.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/domain"
)

// UserRepo defines the repository contract required by AccessService.
type UserRepo interface {
	// UpsertUser inserts the user or refreshes profile columns on conflict.
	UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error

	// GetUser fetches a user by external id.
	GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error)

	// UpdateUserRole sets the user's role.
	UpdateUserRole(ctx context.Context, db *gorm.DB, id int64, role domain.Role) error

	// MarkAccessRequested stamps the time the user filed an access request.
	MarkAccessRequested(ctx context.Context, db *gorm.DB, id int64) error

	// ListUsersByRole returns every user holding the role.
	ListUsersByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]domain.User, error)
}

// MenuProvider supplies the role-dependent main menu attached to
// notifications; the concrete menus live with the bot router.
type MenuProvider interface {
	MainMenu(role domain.Role) chat.Menu
}

// AccessService manages user registration, role normalization, and the
// access-request/approval handshake.
type AccessService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository used by this service.
	Repo UserRepo
	// AdminIDs is the static allow-list of external ids always coerced to
	// the admin role.
	AdminIDs []int64
	// Sender delivers notifications; failures are logged, never fatal.
	Sender chat.Sender
	// Menus builds the main menu sent along with approval notifications.
	Menus MenuProvider
}

// isAllowListed reports whether id is on the admin allow-list.
func (s *AccessService) isAllowListed(id int64) bool {
	for _, a := range s.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// EnsureUser registers the user on first contact and normalizes the role:
// an allow-listed id is forced to admin on every call, overriding whatever
// the store holds (including rejected). The returned user always carries the
// effective role.
func (s *AccessService) EnsureUser(ctx context.Context, id int64, username, firstName, lastName string) (*domain.User, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		role := domain.RolePending
		if s.isAllowListed(id) {
			role = domain.RoleAdmin
		}
		u = &domain.User{
			ID:        id,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
			Role:      role,
		}
		if err := s.Repo.UpsertUser(ctx, s.DB, u); err != nil {
			return nil, err
		}
		return u, nil
	}
	if err != nil {
		return nil, err
	}

	if s.isAllowListed(id) && u.Role != domain.RoleAdmin {
		if err := s.Repo.UpdateUserRole(ctx, s.DB, id, domain.RoleAdmin); err != nil {
			return nil, err
		}
		u.Role = domain.RoleAdmin
	}
	return u, nil
}

// RequestAccess notifies every allow-listed admin about a pending user with
// an approve/reject inline menu. A user whose request was already resolved,
// who was never pending, or who already filed a request gets
// ErrAlreadyProcessed and admins are not notified again. Per-admin delivery
// failures are logged and skipped.
func (s *AccessService) RequestAccess(ctx context.Context, u *domain.User) error {
	if u.Role != domain.RolePending || u.AccessRequestedAt != nil {
		return ErrAlreadyProcessed
	}
	if err := s.Repo.MarkAccessRequested(ctx, s.DB, u.ID); err != nil {
		return err
	}
	now := time.Now().UTC()
	u.AccessRequestedAt = &now

	text := fmt.Sprintf(
		"🆕 Новый запрос на доступ:\n\n👤 %s\n📧 @%s\n🆔 %d",
		u.DisplayName(), u.Username, u.ID,
	)
	menu := ApprovalMenu(u.ID)
	for _, adminID := range s.AdminIDs {
		if err := s.Sender.SendText(ctx, adminID, text, menu); err != nil {
			log.Error().Err(err).Int64("admin_id", adminID).Msg("failed to notify admin about access request")
		}
	}
	return nil
}

// ApprovalMenu is the approve/reject inline menu bound to a specific user's
// access request.
func ApprovalMenu(userID int64) chat.InlineMenu {
	return chat.InlineMenu{{
		{Text: "✅ Одобрить", Data: fmt.Sprintf("approve_%d", userID)},
		{Text: "❌ Отклонить", Data: fmt.Sprintf("reject_%d", userID)},
	}}
}

// ListWorkers returns all approved workers (broadcast recipients).
func (s *AccessService) ListWorkers(ctx context.Context) ([]domain.User, error) {
	return s.Repo.ListUsersByRole(ctx, s.DB, domain.RoleWorker)
}

// ListPending returns users awaiting an access decision.
func (s *AccessService) ListPending(ctx context.Context) ([]domain.User, error) {
	return s.Repo.ListUsersByRole(ctx, s.DB, domain.RolePending)
}

// Resolve applies an admin's approve/reject decision to the target user and
// notifies them of the outcome. A non-admin actor gets ErrNoAccess with no
// state change.
func (s *AccessService) Resolve(ctx context.Context, actor *domain.User, targetID int64, approve bool) (*domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, ErrNoAccess
	}

	target, err := s.Repo.GetUser(ctx, s.DB, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if approve {
		if err := s.Repo.UpdateUserRole(ctx, s.DB, targetID, domain.RoleWorker); err != nil {
			return nil, err
		}
		target.Role = domain.RoleWorker
		if err := s.Sender.SendText(ctx, targetID,
			"✅ Ваш запрос на доступ одобрен!\nТеперь вы можете использовать все функции бота.",
			s.Menus.MainMenu(domain.RoleWorker),
		); err != nil {
			log.Error().Err(err).Int64("user_id", targetID).Msg("failed to notify approved worker")
		}
		return target, nil
	}

	if err := s.Repo.UpdateUserRole(ctx, s.DB, targetID, domain.RoleRejected); err != nil {
		return nil, err
	}
	target.Role = domain.RoleRejected
	if err := s.Sender.SendText(ctx, targetID,
		"❌ Ваш запрос на доступ был отклонен администратором.", nil,
	); err != nil {
		log.Error().Err(err).Int64("user_id", targetID).Msg("failed to notify rejected user")
	}
	return target, nil
}
