package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/attach"
	"github.com/loopchat/loopchat-server/internal/chat"
	"github.com/loopchat/loopchat-server/internal/store"
)

// MessageHandlers provides HTTP handlers for the conversation surface.
type MessageHandlers struct {
	chat   *chat.Service
	attach attach.Store
	log    *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(chatService *chat.Service, attachStore attach.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		chat:   chatService,
		attach: attachStore,
		log:    logger,
	}
}

// SendMessageRequest represents the send request body. Image and File
// carry base64 payloads (optionally data URIs); at most one of the
// three content fields may be set.
type SendMessageRequest struct {
	Text     string `json:"text"`
	Image    string `json:"image"`
	File     string `json:"file"`
	FileName string `json:"fileName"`
}

// resolveContent turns the request body into stored message content,
// uploading any attachment first. An empty body yields an invalid
// zero content which the conversation service rejects.
func (h *MessageHandlers) resolveContent(c *gin.Context, req SendMessageRequest) (store.Content, bool) {
	switch {
	case req.Image != "":
		data, err := decodeBase64Payload(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid image encoding"})
			return store.Content{}, false
		}
		url, _, err := h.attach.Save(c.Request.Context(), data, req.FileName)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to store image")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return store.Content{}, false
		}
		return store.Content{Kind: store.ContentImage, URL: url}, true
	case req.File != "":
		data, err := decodeBase64Payload(req.File)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file encoding"})
			return store.Content{}, false
		}
		url, _, err := h.attach.Save(c.Request.Context(), data, req.FileName)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to store file")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return store.Content{}, false
		}
		return store.Content{Kind: store.ContentFile, URL: url, Filename: req.FileName}, true
	case req.Text != "":
		return store.Content{Kind: store.ContentText, Text: req.Text}, true
	default:
		return store.Content{}, true
	}
}

// Send handles sending a direct message.
// POST /api/messages/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	receiverID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid receiver id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	content, ok := h.resolveContent(c, req)
	if !ok {
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), senderID, receiverID, content)
	if err != nil {
		status := domainStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("sender_id", senderID).Int64("receiver_id", receiverID).Msg("failed to send message")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, messageToResponse(msg))
}

// History handles fetching the conversation with another user.
// GET /api/messages/:id
func (h *MessageHandlers) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	peerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	messages, err := h.chat.History(c.Request.Context(), userID, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Int64("peer_id", peerID).Msg("failed to fetch history")
		c.JSON(domainStatus(err), ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messagesToResponse(messages))
}

// ListContacts handles listing the chat sidebar users.
// GET /api/messages/users
func (h *MessageHandlers) ListContacts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.chat.ListContacts(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list contacts")
		c.JSON(domainStatus(err), ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, usersToResponse(users))
}

// SendGroup handles sending a message to the predefined group.
// POST /api/group/messages
func (h *MessageHandlers) SendGroup(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid group send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	content, ok := h.resolveContent(c, req)
	if !ok {
		return
	}

	msg, err := h.chat.SendGroup(c.Request.Context(), senderID, content)
	if err != nil {
		status := domainStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("sender_id", senderID).Msg("failed to send group message")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, groupMessageToResponse(msg))
}

// GroupHistory handles fetching the predefined group's history.
// GET /api/group/messages
func (h *MessageHandlers) GroupHistory(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messages, err := h.chat.GroupHistory(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to fetch group history")
		c.JSON(domainStatus(err), ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, groupMessagesToResponse(messages))
}

// MarkGroupRead records the current user in a group message's read set.
// POST /api/group/messages/:id/read
func (h *MessageHandlers) MarkGroupRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	if err := h.chat.MarkGroupRead(c.Request.Context(), messageID, userID); err != nil {
		status := domainStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("message_id", messageID).Msg("failed to mark group message read")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
