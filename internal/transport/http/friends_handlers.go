package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/loopchat/loopchat-server/internal/friends"
	"github.com/loopchat/loopchat-server/internal/store"
)

// FriendsHandlers provides HTTP handlers for friend management.
type FriendsHandlers struct {
	friends *friends.Service
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(friendsService *friends.Service, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		friends: friendsService,
		log:     logger,
	}
}

// SendFriendRequestRequest represents a friend request body.
type SendFriendRequestRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// FriendResponse represents a friendship in API responses.
type FriendResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	FriendID  int64  `json:"friendId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func friendToResponse(f *store.Friend) FriendResponse {
	return FriendResponse{
		ID:        f.ID,
		UserID:    f.UserID,
		FriendID:  f.FriendID,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
}

func friendsToResponse(list []*store.Friend) []FriendResponse {
	return lo.Map(list, func(f *store.Friend, _ int) FriendResponse {
		return friendToResponse(f)
	})
}

func friendErrorStatus(err error) int {
	switch {
	case errors.Is(err, friends.ErrUserNotFound),
		errors.Is(err, friends.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, friends.ErrCannotFriendSelf),
		errors.Is(err, friends.ErrAlreadyFriends),
		errors.Is(err, friends.ErrRequestAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SendRequest handles sending a friend request.
// POST /api/friends/requests
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	friend, err := h.friends.SendRequest(c.Request.Context(), userID, req.UserID)
	if err != nil {
		status := friendErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to send friend request")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, friendToResponse(friend))
}

// AcceptRequest handles accepting a pending friend request.
// POST /api/friends/requests/:id/accept
func (h *FriendsHandlers) AcceptRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	fromUserID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	if err := h.friends.AcceptRequest(c.Request.Context(), userID, fromUserID); err != nil {
		status := friendErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to accept friend request")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// RejectRequest handles rejecting a pending friend request.
// DELETE /api/friends/requests/:id
func (h *FriendsHandlers) RejectRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	fromUserID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	if err := h.friends.RejectRequest(c.Request.Context(), userID, fromUserID); err != nil {
		status := friendErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to reject friend request")
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListFriends handles listing accepted friendships.
// GET /api/friends
func (h *FriendsHandlers) ListFriends(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, friendsToResponse(list))
}

// ListRequests handles listing pending friend requests.
// GET /api/friends/requests
func (h *FriendsHandlers) ListRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.friends.ListPendingRequests(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list friend requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, friendsToResponse(list))
}
