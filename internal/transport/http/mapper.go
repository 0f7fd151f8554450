package http

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/loopchat/loopchat-server/internal/chat"
	"github.com/loopchat/loopchat-server/internal/store"
)

// MessageResponse represents a direct message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Kind       string `json:"kind"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	Filename   string `json:"fileName,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// GroupMessageResponse represents a group message in API responses.
type GroupMessageResponse struct {
	ID        int64   `json:"id"`
	GroupID   string  `json:"groupId"`
	SenderID  int64   `json:"senderId"`
	Kind      string  `json:"kind"`
	Text      string  `json:"text,omitempty"`
	URL       string  `json:"url,omitempty"`
	Filename  string  `json:"fileName,omitempty"`
	ReadBy    []int64 `json:"readBy"`
	CreatedAt string  `json:"createdAt"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

func messageToResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Kind:       string(m.Content.Kind),
		Text:       m.Content.Text,
		URL:        m.Content.URL,
		Filename:   m.Content.Filename,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

func groupMessageToResponse(m *store.GroupMessage) GroupMessageResponse {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []int64{}
	}
	return GroupMessageResponse{
		ID:        m.ID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Kind:      string(m.Content.Kind),
		Text:      m.Content.Text,
		URL:       m.Content.URL,
		Filename:  m.Content.Filename,
		ReadBy:    readBy,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func messagesToResponse(messages []*store.Message) []MessageResponse {
	return lo.Map(messages, func(m *store.Message, _ int) MessageResponse {
		return messageToResponse(m)
	})
}

func groupMessagesToResponse(messages []*store.GroupMessage) []GroupMessageResponse {
	return lo.Map(messages, func(m *store.GroupMessage, _ int) GroupMessageResponse {
		return groupMessageToResponse(m)
	})
}

func usersToResponse(users []*store.User) []UserResponse {
	return lo.Map(users, func(u *store.User, _ int) UserResponse {
		return UserResponse{
			ID:        u.ID,
			Username:  u.Username,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		}
	})
}

// decodeBase64Payload accepts raw base64 or a data URI
// ("data:<mime>;base64,<payload>") and returns the decoded bytes.
func decodeBase64Payload(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ";base64,"); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(payload)
}

// domainStatus maps a conversation error to an HTTP status code.
func domainStatus(err error) int {
	switch chat.CodeOf(err) {
	case chat.ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case chat.ErrCodeNotAllowed, chat.ErrCodeUnauthorized:
		return http.StatusForbidden
	case chat.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
