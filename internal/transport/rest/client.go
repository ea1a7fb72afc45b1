// Package rest consumes the chat backend's HTTP endpoints: room listing,
// message history, HTTP-style sends, and read receipts.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"minichat/internal/domain"
	"minichat/internal/transport/httpdto"
	minichat_errors "minichat/pkg/errors"
)

const identityHeader = "X-USER-ID"

// RequestError carries the status detail of a non-success response.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

// Client is the HTTP collaborator for history loading and request/response
// sends. It does not retry; failures surface to the caller.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListChats fetches one page of the caller's rooms.
func (c *Client) ListChats(ctx context.Context, page, size int) ([]domain.ChatRoom, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var resp httpdto.PageResponse[httpdto.ChatSummary]
	if err := c.get(ctx, "/chats?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	rooms := make([]domain.ChatRoom, 0, len(resp.Content))
	for _, s := range resp.Content {
		rooms = append(rooms, domain.ChatRoom{
			ChatID:             s.ChatID,
			Type:               domain.ChatType(s.Type),
			Title:              s.Title,
			LastMessagePreview: s.LastMessagePreview,
			LastMessageAt:      s.LastMessageAt,
			MemberCount:        s.MemberCount,
			UnreadCount:        s.UnreadCount,
		})
	}
	return rooms, nil
}

// ListMessages fetches one page of a room's history, newest first. Page 0 is
// the most recent slice.
func (c *Client) ListMessages(ctx context.Context, chatID string, page, size int) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("chatId", chatID)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var resp httpdto.PageResponse[httpdto.MessageResponse]
	if err := c.get(ctx, "/messages?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(resp.Content))
	for _, m := range resp.Content {
		msgs = append(msgs, MessageFromResponse(m))
	}
	return msgs, nil
}

// SendMessage posts a message and returns the settled message from the
// response body.
func (c *Client) SendMessage(ctx context.Context, req httpdto.SendMessageRequest) (domain.Message, error) {
	var resp httpdto.MessageResponse
	if err := c.post(ctx, "/messages", req, &resp); err != nil {
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}
	return MessageFromResponse(resp), nil
}

// MarkReadUpTo records that the caller has read a room up to the given
// message.
func (c *Client) MarkReadUpTo(ctx context.Context, chatID, lastReadMessageID string) error {
	req := httpdto.ReadUpToRequest{LastReadMessageID: lastReadMessageID}
	if err := c.post(ctx, "/chats/"+url.PathEscape(chatID)+"/read", req, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MessageFromResponse converts a wire message into the domain model. Wire
// messages are settled by definition.
func MessageFromResponse(m httpdto.MessageResponse) domain.Message {
	return domain.Message{
		ID:            m.ID,
		ChatID:        m.ChatID,
		SenderID:      m.SenderID,
		Content:       m.Content,
		ContentType:   m.ContentType,
		CreatedAt:     m.CreatedAt,
		Origin:        domain.OriginRemote,
		CorrelationID: m.ClientMsgID,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set(identityHeader, c.userID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", minichat_errors.ErrDecodeFailed, err)
	}
	return nil
}
