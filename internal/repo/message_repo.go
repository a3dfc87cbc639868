// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/domain"
)

// CreateMessage inserts a message row.
func CreateMessage(ctx context.Context, db *gorm.DB, senderID, recipientID int64, text string) (*domain.Message, error) {
	m := &domain.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		SentAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessagesByRecipient returns up to limit messages addressed to the
// recipient with senders preloaded, most recent first. A limit <= 0 returns
// everything.
func ListMessagesByRecipient(ctx context.Context, db *gorm.DB, recipientID int64, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Preload("Sender").
		Where("recipient_id = ?", recipientID).
		Order("sent_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Message
	err := q.Find(&out).Error
	return out, err
}
