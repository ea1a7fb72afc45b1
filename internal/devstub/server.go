// Package devstub is a local stand-in for the chat backend. It serves the
// same REST and websocket contract the client consumes, backed by in-memory
// state, so the client can be developed and tested without the real server.
package devstub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"minichat/internal/transport/httpdto"
	"minichat/internal/transport/ws"
	"minichat/pkg/logger"
)

const identityHeader = "X-USER-ID"

type chatState struct {
	summary httpdto.ChatSummary
	members map[string]struct{}
}

// session is one connected websocket client. An empty subs map means the
// connection-wide broadcast shape; entries mean per-room subscriptions.
type session struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
	subs   map[string]struct{}
	scoped bool // set once the client sends its first subscribe frame
}

func (s *session) write(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *session) wants(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scoped {
		return true
	}
	_, ok := s.subs[chatID]
	return ok
}

// Server holds the stub's in-memory chat state.
type Server struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	chats    map[string]*chatState
	order    []string                              // chat ids in listing order
	messages map[string][]httpdto.MessageResponse // newest first
	lastRead map[string]map[string]string          // chatID -> userID -> messageID
	sessions map[*session]struct{}
	nextID   int
}

func NewServer(log *logger.Logger) *Server {
	s := &Server{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		chats:    make(map[string]*chatState),
		messages: make(map[string][]httpdto.MessageResponse),
		lastRead: make(map[string]map[string]string),
		sessions: make(map[*session]struct{}),
	}
	s.seed()
	return s
}

// Router builds the gin engine serving the backend contract.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/chats", s.handleListChats)
	api.GET("/messages", s.handleListMessages)
	api.POST("/messages", s.handleSendMessage)
	api.POST("/chats/:id/read", s.handleReadUpTo)

	r.GET("/ws-handler", s.handleWebSocket)
	return r
}

func (s *Server) handleListChats(c *gin.Context) {
	userID := c.GetHeader(identityHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + identityHeader})
		return
	}
	page, size := pageParams(c, 20)

	s.mu.Lock()
	var all []httpdto.ChatSummary
	for _, id := range s.order {
		chat := s.chats[id]
		if _, ok := chat.members[userID]; !ok {
			continue
		}
		summary := chat.summary
		summary.UnreadCount = s.unreadLocked(id, userID)
		all = append(all, summary)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, paginate(all, page, size))
}

func (s *Server) handleListMessages(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chatId"})
		return
	}
	page, size := pageParams(c, 50)

	s.mu.Lock()
	if _, ok := s.chats[chatID]; !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	all := make([]httpdto.MessageResponse, len(s.messages[chatID]))
	copy(all, s.messages[chatID])
	s.mu.Unlock()

	c.JSON(http.StatusOK, paginate(all, page, size))
}

func (s *Server) handleSendMessage(c *gin.Context) {
	userID := c.GetHeader(identityHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + identityHeader})
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	saved, ok := s.saveAndBroadcast(userID, req)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleReadUpTo(c *gin.Context) {
	userID := c.GetHeader(identityHeader)
	chatID := c.Param("id")
	var req httpdto.ReadUpToRequest
	if err := c.ShouldBindJSON(&req); err != nil || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s.mu.Lock()
	if _, ok := s.chats[chatID]; !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if s.lastRead[chatID] == nil {
		s.lastRead[chatID] = make(map[string]string)
	}
	s.lastRead[chatID][userID] = req.LastReadMessageID
	s.mu.Unlock()

	c.Status(http.StatusNoContent)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing userId"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	sess := &session{conn: conn, userID: userID, subs: make(map[string]struct{})}
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.log.Infof("websocket connected: userId=%s", userID)

	go s.readLoop(sess)
}

func (s *Server) readLoop(sess *session) {
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		_ = sess.conn.Close()
		s.log.Infof("websocket closed: userId=%s", sess.userID)
	}()

	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(sess, payload)
	}
}

// handleFrame accepts either a subscription control frame or a plain send
// request, matching the two live-channel shapes the client supports.
func (s *Server) handleFrame(sess *session, payload []byte) {
	var ctrl ws.ControlFrame
	if err := json.Unmarshal(payload, &ctrl); err == nil && ctrl.Type != "" {
		sess.mu.Lock()
		sess.scoped = true
		switch ctrl.Type {
		case ws.FrameSubscribe:
			sess.subs[ctrl.ChatID] = struct{}{}
		case ws.FrameUnsubscribe:
			delete(sess.subs, ctrl.ChatID)
		}
		sess.mu.Unlock()
		return
	}

	var req httpdto.SendMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" || req.Content == "" {
		s.log.Debugf("dropping undecodable frame from userId=%s", sess.userID)
		return
	}
	s.saveAndBroadcast(sess.userID, req)
}

// saveAndBroadcast persists the message and pushes it to every session that
// wants the room, echoing the client message id for reconciliation.
func (s *Server) saveAndBroadcast(senderID string, req httpdto.SendMessageRequest) (httpdto.MessageResponse, bool) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = "TEXT"
	}

	s.mu.Lock()
	chat, ok := s.chats[req.ChatID]
	if !ok {
		s.mu.Unlock()
		return httpdto.MessageResponse{}, false
	}
	s.nextID++
	saved := httpdto.MessageResponse{
		ID:          strconv.Itoa(s.nextID),
		ChatID:      req.ChatID,
		SenderID:    senderID,
		Content:     req.Content,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
		ClientMsgID: req.ClientMsgID,
	}
	s.messages[req.ChatID] = append([]httpdto.MessageResponse{saved}, s.messages[req.ChatID]...)
	chat.summary.LastMessagePreview = saved.Content
	at := saved.CreatedAt
	chat.summary.LastMessageAt = &at

	targets := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		if _, member := chat.members[sess.userID]; member && sess.wants(req.ChatID) {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	payload, err := json.Marshal(saved)
	if err != nil {
		return saved, true
	}
	for _, sess := range targets {
		sess.write(payload)
	}
	return saved, true
}

// unreadLocked counts messages newer than the user's read marker, excluding
// the user's own. Caller holds s.mu.
func (s *Server) unreadLocked(chatID, userID string) int64 {
	marker := ""
	if m := s.lastRead[chatID]; m != nil {
		marker = m[userID]
	}
	var n int64
	for _, msg := range s.messages[chatID] {
		if msg.ID == marker {
			break
		}
		if msg.SenderID != userID {
			n++
		}
	}
	return n
}

func pageParams(c *gin.Context, defaultSize int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSize)))
	if err != nil || size <= 0 || size > 100 {
		size = defaultSize
	}
	return page, size
}

func paginate[T any](all []T, page, size int) httpdto.PageResponse[T] {
	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return httpdto.PageResponse[T]{
		Content:       all[start:end],
		Page:          page,
		Size:          size,
		TotalElements: int64(len(all)),
	}
}
