// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records processed webhook update ids so the bot
// can drop platform redeliveries instead of replaying them into dialogues.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/domain"
)

// MarkUpdateProcessed inserts a dedup record for updateID and reports
// whether this call was the first to see it. Expired rows for the same id
// are replaced. Every ~1000 inserts the expired backlog is purged.
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	rec := &domain.ProcessedUpdate{
		UpdateID:  updateID,
		SeenAt:    now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		if updateID%1000 == 0 {
			db.WithContext(ctx).
				Where("expires_at <= ?", now).
				Delete(&domain.ProcessedUpdate{})
		}
		return true, nil
	}

	if !isUniqueViolation(err) {
		return false, err
	}

	// Already recorded; treat as fresh again only when the old row expired.
	var old domain.ProcessedUpdate
	if gerr := db.WithContext(ctx).First(&old, "update_id = ?", updateID).Error; gerr != nil {
		if errors.Is(gerr, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, gerr
	}
	if old.ExpiresAt.After(now) {
		return false, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.ProcessedUpdate{}).
		Where("update_id = ?", updateID).
		Updates(map[string]any{"seen_at": now, "expires_at": now.Add(ttl)})
	return res.Error == nil, res.Error
}

// isUniqueViolation reports whether err is a primary-key/unique clash.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
