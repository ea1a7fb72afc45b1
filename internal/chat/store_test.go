package chat_test

import (
	"testing"
	"time"

	"minichat/internal/chat"
	"minichat/internal/domain"
)

func settled(id, room, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		ChatID:    room,
		SenderID:  sender,
		Content:   content,
		CreatedAt: at,
		Origin:    domain.OriginRemote,
	}
}

func pending(token, room, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ChatID:        room,
		SenderID:      sender,
		Content:       content,
		CreatedAt:     at,
		Origin:        domain.OriginLocalPending,
		CorrelationID: token,
	}
}

func TestStore_IdempotentIngestion(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", nil)

	msg := settled("5", "1", "2", "hi", time.Now())
	s.IngestRemote("1", msg)
	s.IngestRemote("1", msg)

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("expected 1 message after duplicate ingestion, got %d", got)
	}
}

func TestStore_PendingReconciliation(t *testing.T) {
	tests := []struct {
		name        string
		correlation string // correlation id echoed on the settled message
	}{
		{name: "by correlation token", correlation: "tok-1"},
		{name: "by content heuristic", correlation: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := chat.NewStore()
			s.ReplaceAll("1", []domain.Message{settled("5", "1", "2", "hi", time.Now().Add(-time.Minute))})

			s.IngestLocalPending("1", pending("tok-1", "1", "1", "yo", time.Now()))
			if got := s.PendingCount(); got != 1 {
				t.Fatalf("expected 1 pending entry, got %d", got)
			}

			echo := settled("6", "1", "1", "yo", time.Now())
			echo.CorrelationID = tt.correlation
			s.IngestRemote("1", echo)

			msgs := s.Messages()
			if len(msgs) != 2 {
				t.Fatalf("expected 2 messages after reconciliation, got %d", len(msgs))
			}
			if !msgs[0].Settled() || msgs[0].ID != "6" || msgs[0].Content != "yo" {
				t.Errorf("head entry not settled in place: %+v", msgs[0])
			}
			if s.PendingCount() != 0 {
				t.Errorf("pending table not cleared, %d entries left", s.PendingCount())
			}
		})
	}
}

func TestStore_HeuristicRespectsTimeWindow(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", nil)

	s.IngestLocalPending("1", pending("tok-1", "1", "1", "yo", time.Now()))
	// Same sender and content, but created far outside the reconciliation
	// window: a distinct message, not a settlement.
	s.IngestRemote("1", settled("6", "1", "1", "yo", time.Now().Add(-time.Hour)))

	if got := len(s.Messages()); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
	if s.PendingCount() != 1 {
		t.Errorf("pending entry should be untouched, pending=%d", s.PendingCount())
	}
}

func TestStore_ReplaceAllClearsPending(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", nil)
	s.IngestLocalPending("1", pending("tok-1", "1", "1", "yo", time.Now()))

	s.ReplaceAll("1", []domain.Message{settled("5", "1", "2", "hi", time.Now())})

	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected pending table cleared, got %d entries", got)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].ID != "5" {
		t.Fatalf("unexpected sequence after replace: %+v", msgs)
	}
}

func TestStore_StaleRoomEventsDiscarded(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("B", nil)

	s.IngestRemote("A", settled("5", "A", "2", "late", time.Now()))

	if got := len(s.Messages()); got != 0 {
		t.Fatalf("stale-room event leaked into sequence: %d entries", got)
	}
}

func TestStore_NewestFirstOrdering(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", nil)

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s.IngestRemote("1", settled("1", "1", "2", "first", base))
	s.IngestRemote("1", settled("2", "1", "2", "second", base.Add(time.Minute)))
	s.IngestRemote("1", settled("3", "1", "2", "third", base.Add(2*time.Minute)))

	msgs := s.Messages()
	want := []string{"third", "second", "first"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, content := range want {
		if msgs[i].Content != content {
			t.Errorf("position %d: expected %q, got %q", i, content, msgs[i].Content)
		}
	}
}

func TestStore_ReconcileSendSettlesInPlace(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", []domain.Message{settled("5", "1", "2", "hi", time.Now().Add(-time.Minute))})
	s.IngestLocalPending("1", pending("tok-1", "1", "1", "yo", time.Now()))

	s.ReconcileSend("tok-1", settled("6", "1", "1", "yo", time.Now()))

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "6" || !msgs[0].Settled() {
		t.Errorf("pending entry not settled in place: %+v", msgs[0])
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending table not cleared")
	}
}

func TestStore_ReconcileAfterBroadcastEchoIsNoDuplicate(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", nil)
	s.IngestLocalPending("1", pending("tok-1", "1", "1", "yo", time.Now()))

	// The broadcast echo wins the race and settles the entry first.
	echo := settled("6", "1", "1", "yo", time.Now())
	echo.CorrelationID = "tok-1"
	s.IngestRemote("1", echo)

	// The direct send response arrives second.
	s.ReconcileSend("tok-1", settled("6", "1", "1", "yo", time.Now()))

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("expected 1 message after double settlement, got %d", got)
	}
}

func TestStore_FailSendKeepsEntryVisible(t *testing.T) {
	s := chat.NewStore()
	s.ReplaceAll("1", nil)
	s.IngestLocalPending("1", pending("tok-1", "1", "1", "yo", time.Now()))

	s.FailSend("tok-1")

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("failed send vanished from sequence: %d entries", len(msgs))
	}
	if !msgs[0].Failed || msgs[0].Settled() {
		t.Errorf("entry should be marked failed and unsettled: %+v", msgs[0])
	}
	if s.PendingCount() != 0 {
		t.Errorf("failed entry should leave the pending table")
	}
}
