// Package services – broadcast dispatcher
//
// The only fan-out in the system. Delivery to each recipient is attempted
// independently, exactly once, with no retry or backoff: announcements are
// operator-facing and non-critical. A failed delivery is counted, logged,
// and never aborts the rest of the batch.
package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/domain"
)

// BroadcastService fans a message out to a recipient list.
type BroadcastService struct {
	Sender chat.Sender
}

// Broadcast delivers text to every recipient and reports how many sends
// succeeded and failed.
func (s *BroadcastService) Broadcast(ctx context.Context, text string, recipients []domain.User) (sent, failed int) {
	for _, r := range recipients {
		if err := s.Sender.SendText(ctx, r.ID, text, nil); err != nil {
			failed++
			log.Error().Err(err).Int64("user_id", r.ID).Msg("broadcast delivery failed")
			continue
		}
		sent++
	}
	return sent, failed
}
