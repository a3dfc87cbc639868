// Package services – MessageService
//
// Workers reach administrators through short persisted messages; admins and
// workers read a recipient-scoped, reverse-chronological inbox. One Message
// row is inserted per admin recipient so every admin's inbox query sees the
// note, regardless of delivery outcome.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/domain"
)

// MessageRepo defines the repository contract required by MessageService.
type MessageRepo interface {
	CreateMessage(ctx context.Context, db *gorm.DB, senderID, recipientID int64, text string) (*domain.Message, error)
	ListMessagesByRecipient(ctx context.Context, db *gorm.DB, recipientID int64, limit int) ([]domain.Message, error)
}

// MessageService persists and delivers worker-to-admin messages.
type MessageService struct {
	DB       *gorm.DB
	Repo     MessageRepo
	AdminIDs []int64
	Sender   chat.Sender
}

// SendToAdmins persists the text for every allow-listed admin and attempts
// delivery to each independently. Delivery failures are logged and counted;
// persistence failures are returned since a silently lost message is worse
// than a duplicate notification.
func (s *MessageService) SendToAdmins(ctx context.Context, sender *domain.User, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	rendered := fmt.Sprintf(
		"📩 Сообщение от работника %s (@%s):\n\n%s",
		sender.DisplayName(), sender.Username, text,
	)
	for _, adminID := range s.AdminIDs {
		if _, err := s.Repo.CreateMessage(ctx, s.DB, sender.ID, adminID, text); err != nil {
			return err
		}
		if err := s.Sender.SendText(ctx, adminID, rendered, nil); err != nil {
			log.Error().Err(err).Int64("admin_id", adminID).Msg("failed to deliver message to admin")
		}
	}
	return nil
}

// Inbox returns up to limit most recent messages addressed to the user.
func (s *MessageService) Inbox(ctx context.Context, userID int64, limit int) ([]domain.Message, error) {
	return s.Repo.ListMessagesByRecipient(ctx, s.DB, userID, limit)
}
