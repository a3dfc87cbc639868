package services

import (
	"context"
	"testing"

	"github.com/finishworks/crewbot/internal/domain"
)

func TestBroadcast_CountsSentAndFailed(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]bool{2: true, 4: true}}
	s := &BroadcastService{Sender: sender}

	recipients := []domain.User{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	sent, failed := s.Broadcast(context.Background(), "объявление", recipients)

	if sent != 3 || failed != 2 {
		t.Fatalf("expected 3 sent / 2 failed, got %d / %d", sent, failed)
	}
	// A failure in the middle must not stop later deliveries.
	if len(sender.sent) != 3 || sender.sent[2].userID != 5 {
		t.Fatalf("unexpected delivery order: %+v", sender.sent)
	}
}

func TestBroadcast_EmptyRecipientList(t *testing.T) {
	sender := &fakeSender{}
	s := &BroadcastService{Sender: sender}

	sent, failed := s.Broadcast(context.Background(), "объявление", nil)
	if sent != 0 || failed != 0 {
		t.Fatalf("expected 0/0, got %d/%d", sent, failed)
	}
}
