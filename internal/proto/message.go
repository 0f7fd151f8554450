package proto

import (
	"encoding/json"

	"github.com/loopchat/loopchat-server/internal/store"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypePing  = "ping"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	// Event names pushed by the server.
	EventReady           = "ready"
	EventNewMessage      = "newMessage"
	EventNewGroupMessage = "newGroupMessage"
	EventOnlineUsers     = "onlineUsers"
	EventPong            = "pong"
)

// HelloData authenticates the connection. The client must send it as
// the first frame, within the handshake timeout.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire form of a stored direct message.
type MessagePayload struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Kind       string `json:"kind"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	Filename   string `json:"fileName,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}

// GroupMessagePayload is the wire form of a stored group message.
type GroupMessagePayload struct {
	ID        int64   `json:"id"`
	GroupID   string  `json:"groupId"`
	SenderID  int64   `json:"senderId"`
	Kind      string  `json:"kind"`
	Text      string  `json:"text,omitempty"`
	URL       string  `json:"url,omitempty"`
	Filename  string  `json:"fileName,omitempty"`
	ReadBy    []int64 `json:"readBy"`
	CreatedAt int64   `json:"createdAt"`
}

// OnlineUsersPayload carries the set of currently connected user ids.
type OnlineUsersPayload struct {
	UserIDs []int64 `json:"userIds"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// FromMessage converts a stored direct message to its wire form.
func FromMessage(m *store.Message) MessagePayload {
	return MessagePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Kind:       string(m.Content.Kind),
		Text:       m.Content.Text,
		URL:        m.Content.URL,
		Filename:   m.Content.Filename,
		CreatedAt:  m.CreatedAt.Unix(),
	}
}

// FromGroupMessage converts a stored group message to its wire form.
func FromGroupMessage(m *store.GroupMessage) GroupMessagePayload {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []int64{}
	}
	return GroupMessagePayload{
		ID:        m.ID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Kind:      string(m.Content.Kind),
		Text:      m.Content.Text,
		URL:       m.Content.URL,
		Filename:  m.Content.Filename,
		ReadBy:    readBy,
		CreatedAt: m.CreatedAt.Unix(),
	}
}
