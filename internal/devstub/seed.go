package devstub

import (
	"strconv"
	"time"

	"minichat/internal/transport/httpdto"
)

// seed installs the fixed development data set: two users (1 and 2), one
// direct room and one group room, with a little history in each. User ids
// match the default USER_ID in config so the client works out of the box.
func (s *Server) seed() {
	now := time.Now().UTC()

	s.addChat(httpdto.ChatSummary{ChatID: "1", Type: "DIRECT"}, "1", "2")
	s.addChat(httpdto.ChatSummary{ChatID: "2", Type: "GROUP", Title: "general", MemberCount: 3}, "1", "2", "3")

	s.seedMessage("1", "2", "hey, are you around?", now.Add(-10*time.Minute))
	s.seedMessage("1", "1", "yes, what's up", now.Add(-9*time.Minute))
	s.seedMessage("2", "3", "welcome to general", now.Add(-time.Hour))
}

func (s *Server) addChat(summary httpdto.ChatSummary, members ...string) {
	chat := &chatState{summary: summary, members: make(map[string]struct{})}
	for _, m := range members {
		chat.members[m] = struct{}{}
	}
	if chat.summary.MemberCount == 0 {
		chat.summary.MemberCount = len(members)
	}
	s.chats[summary.ChatID] = chat
	s.order = append(s.order, summary.ChatID)
}

func (s *Server) seedMessage(chatID, senderID, content string, at time.Time) {
	s.nextID++
	msg := httpdto.MessageResponse{
		ID:          strconv.Itoa(s.nextID),
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		ContentType: "TEXT",
		CreatedAt:   at,
	}
	s.messages[chatID] = append([]httpdto.MessageResponse{msg}, s.messages[chatID]...)
	chat := s.chats[chatID]
	chat.summary.LastMessagePreview = content
	t := at
	chat.summary.LastMessageAt = &t
}
