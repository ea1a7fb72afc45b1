package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"minichat/config"
	"minichat/internal/domain"
	"minichat/internal/transport/httpdto"
	minichat_errors "minichat/pkg/errors"
	"minichat/pkg/logger"
)

const defaultContentType = "TEXT"

// MessagePoster is the HTTP send path, satisfied by the rest client.
type MessagePoster interface {
	SendMessage(ctx context.Context, req httpdto.SendMessageRequest) (domain.Message, error)
}

// Sender turns composed text into an optimistic store entry plus either a
// websocket publish or an HTTP submit.
//
// On the publish path no acknowledgement is guaranteed; the entry settles
// passively when the server's broadcast of the persisted message comes back
// through the subscription controller. On the HTTP path the response body is
// the settled message and reconciles the entry directly.
type Sender struct {
	transport Transport
	api       MessagePoster
	store     *Store
	log       *logger.Logger
	userID    string
	viaHTTP   bool
}

func NewSender(transport Transport, api MessagePoster, store *Store, mode, userID string, log *logger.Logger) *Sender {
	return &Sender{
		transport: transport,
		api:       api,
		store:     store,
		log:       log,
		userID:    userID,
		viaHTTP:   mode == config.DeliveryHTTP,
	}
}

// Send dispatches content to roomID. Preconditions: content is non-empty
// after trimming, roomID is the room the store currently holds, and a
// delivery path is available. A rejected send is not queued.
func (s *Sender) Send(ctx context.Context, roomID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, minichat_errors.ErrEmptyMessage
	}
	if roomID == "" {
		return domain.Message{}, minichat_errors.ErrNoActiveRoom
	}
	if roomID != s.store.Room() {
		return domain.Message{}, minichat_errors.ErrRoomMismatch
	}
	if !s.viaHTTP && s.transport.State() != domain.Connected {
		return domain.Message{}, minichat_errors.ErrNotConnected
	}

	token := uuid.New().String()
	pending := domain.Message{
		ChatID:        roomID,
		SenderID:      s.userID,
		Content:       content,
		ContentType:   defaultContentType,
		CreatedAt:     time.Now(),
		Origin:        domain.OriginLocalPending,
		CorrelationID: token,
	}
	s.store.IngestLocalPending(roomID, pending)

	req := httpdto.SendMessageRequest{
		ChatID:      roomID,
		Content:     content,
		ContentType: defaultContentType,
		ClientMsgID: token,
	}

	if s.viaHTTP {
		settled, err := s.api.SendMessage(ctx, req)
		if err != nil {
			s.store.FailSend(token)
			return pending, err
		}
		s.store.ReconcileSend(token, settled)
		return settled, nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		s.store.FailSend(token)
		return pending, err
	}
	if err := s.transport.Publish(payload); err != nil {
		s.store.FailSend(token)
		return pending, err
	}
	s.log.Debugf("send dispatched: room=%s token=%s", roomID, token)
	return pending, nil
}
