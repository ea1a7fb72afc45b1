// Package chat implements the real-time synchronization core: the message
// reconciliation store, the room subscription controller, the outbound send
// coordinator, and the client facade that ties them to the transports.
package chat

import (
	"sync"
	"time"

	"minichat/internal/domain"
)

// reconcileWindow bounds the content-heuristic match between a pending send
// and a settled broadcast. Outside the window two identical texts are
// treated as distinct messages.
const reconcileWindow = 2 * time.Minute

// Store is the authoritative, room-scoped, newest-first, deduplicated
// message sequence rendered by the UI. It merges three sources: history
// fetches, live pushes, and locally optimistic sends.
//
// Every operation is scoped to a room id; operations tagged with a room
// other than the store's current one are discarded, which is what keeps
// late-arriving events from a previously active room out of the visible
// sequence.
type Store struct {
	mu       sync.Mutex
	roomID   string
	messages []domain.Message
	pending  map[string]struct{} // correlation tokens awaiting settlement
	onChange func()
}

func NewStore() *Store {
	return &Store{pending: make(map[string]struct{})}
}

// OnChange registers a callback invoked after every mutation of the visible
// sequence. Must be set before the store is shared.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Room returns the room the current sequence belongs to.
func (s *Store) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Messages returns a copy of the visible sequence, newest first.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// PendingCount returns the number of unreconciled optimistic sends.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ReplaceAll installs a freshly fetched history page as the sequence for
// roomID, discarding all prior content including unreconciled pending
// entries from any previous room.
func (s *Store) ReplaceAll(roomID string, messages []domain.Message) {
	s.mu.Lock()
	s.roomID = roomID
	s.messages = make([]domain.Message, len(messages))
	copy(s.messages, messages)
	s.pending = make(map[string]struct{})
	s.mu.Unlock()
	s.notify()
}

// IngestRemote merges a live-pushed settled message into the sequence.
// Duplicates (same settled id) are ignored, a matching pending entry is
// replaced in place, and anything else is inserted at the head. Events for
// a room other than the current one are discarded.
func (s *Store) IngestRemote(roomID string, msg domain.Message) {
	if !msg.Settled() {
		return
	}

	s.mu.Lock()
	if roomID != s.roomID || msg.ChatID != s.roomID {
		s.mu.Unlock()
		return
	}
	for _, m := range s.messages {
		if m.Settled() && m.ID == msg.ID {
			s.mu.Unlock()
			return
		}
	}
	if i := s.matchPending(msg); i >= 0 {
		delete(s.pending, s.messages[i].CorrelationID)
		msg.CorrelationID = s.messages[i].CorrelationID
		s.messages[i] = msg
		s.mu.Unlock()
		s.notify()
		return
	}
	s.messages = append([]domain.Message{msg}, s.messages...)
	s.mu.Unlock()
	s.notify()
}

// IngestLocalPending inserts an optimistic local echo at the head of the
// sequence and records it in the pending table.
func (s *Store) IngestLocalPending(roomID string, msg domain.Message) {
	s.mu.Lock()
	if roomID != s.roomID || msg.CorrelationID == "" {
		s.mu.Unlock()
		return
	}
	msg.Origin = domain.OriginLocalPending
	s.pending[msg.CorrelationID] = struct{}{}
	s.messages = append([]domain.Message{msg}, s.messages...)
	s.mu.Unlock()
	s.notify()
}

// ReconcileSend settles the pending entry identified by the correlation
// token with the server-assigned message, keeping its position in the
// sequence. If the broadcast echo already settled it, the call is a no-op.
func (s *Store) ReconcileSend(token string, settled domain.Message) {
	if !settled.Settled() {
		return
	}

	s.mu.Lock()
	if _, ok := s.pending[token]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, token)

	// The broadcast may have raced ahead and inserted the settled message
	// already; in that case drop the pending entry instead of duplicating.
	duplicate := false
	for _, m := range s.messages {
		if m.Settled() && m.ID == settled.ID {
			duplicate = true
			break
		}
	}
	for i, m := range s.messages {
		if m.CorrelationID != token || m.Settled() {
			continue
		}
		if duplicate {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
		} else {
			settled.CorrelationID = token
			s.messages[i] = settled
		}
		break
	}
	s.mu.Unlock()
	s.notify()
}

// FailSend marks the pending entry identified by the correlation token as
// failed. The entry stays visible so the user's typed content is not lost
// without feedback.
func (s *Store) FailSend(token string) {
	s.mu.Lock()
	if _, ok := s.pending[token]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, token)
	for i, m := range s.messages {
		if m.CorrelationID == token && !m.Settled() {
			s.messages[i].Failed = true
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// matchPending finds the pending entry a settled message settles, preferring
// the correlation token echoed on the wire and falling back to a
// sender/content/near-time heuristic. Caller holds s.mu.
func (s *Store) matchPending(msg domain.Message) int {
	if len(s.pending) == 0 {
		return -1
	}
	if msg.CorrelationID != "" {
		if _, ok := s.pending[msg.CorrelationID]; ok {
			for i, m := range s.messages {
				if m.CorrelationID == msg.CorrelationID && !m.Settled() {
					return i
				}
			}
		}
		return -1
	}
	for i, m := range s.messages {
		if m.Settled() || m.Failed {
			continue
		}
		if m.SenderID == msg.SenderID && m.Content == msg.Content && nearInTime(m.CreatedAt, msg.CreatedAt) {
			return i
		}
	}
	return -1
}

func nearInTime(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= reconcileWindow
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
