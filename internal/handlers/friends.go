package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

const (
	friendStatusPending  = models.FriendStatusPending
	friendStatusAccepted = models.FriendStatusAccepted
	friendStatusDeclined = models.FriendStatusDeclined
)

// FriendHandler provides friend invite and listing endpoints for the
// authenticated user.
type FriendHandler struct {
	Friends FriendStore
	NowFunc func() time.Time
}

// Invite handles POST /api/v1/friends/invite.
func (h FriendHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	if h.Friends == nil {
		logger.Error("friend store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "friend service unavailable"})
		return
	}

	var req inviteFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend invite payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	if req.ReceiverID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "receiverId is required"})
		return
	}
	if req.ReceiverID == userID {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "cannot invite yourself"})
		return
	}

	request := models.FriendRequest{
		ID:        uuid.NewString(),
		Requester: userID,
		Receiver:  req.ReceiverID,
		Status:    friendStatusPending,
		CreatedAt: h.now(),
	}

	if err := h.Friends.CreateRequest(ctx, request); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "friend request already exists"})
		case errors.Is(err, repositories.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "user not found"})
		default:
			logger.Error("create friend request failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to create friend request"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, friendRequestResponse{Request: request})
}

// List handles GET /api/v1/friends requests.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	if h.Friends == nil {
		logger.Error("friend store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "friend service unavailable"})
		return
	}

	requests, err := h.Friends.ListForUser(ctx, userID)
	if err != nil {
		logger.Error("list friend requests failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to list friends"})
		return
	}
	if requests == nil {
		requests = []models.FriendRequest{}
	}

	respondJSON(ctx, w, http.StatusOK, listFriendsResponse{Requests: requests})
}

// Respond handles POST /api/v1/friends/respond. Only the receiver may answer.
func (h FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	if h.Friends == nil {
		logger.Error("friend store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "friend service unavailable"})
		return
	}

	var req respondFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend respond payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "requestId is required"})
		return
	}

	var status string
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "accept":
		status = friendStatusAccepted
	case "decline":
		status = friendStatusDeclined
	default:
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "action must be accept or decline"})
		return
	}

	existing, err := h.Friends.FindRequest(ctx, req.RequestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "friend request not found"})
			return
		}
		logger.Error("load friend request failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to update friend request"})
		return
	}
	if existing.Receiver != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorResponse{Error: "only the invited user can respond"})
		return
	}
	if existing.Status != friendStatusPending {
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "friend request already answered"})
		return
	}

	if err := h.Friends.UpdateStatus(ctx, req.RequestID, status); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "friend request not found"})
			return
		}
		logger.Error("update friend request failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to update friend request"})
		return
	}

	existing.Status = status
	respondJSON(ctx, w, http.StatusOK, friendRequestResponse{Request: existing})
}

func (h FriendHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type inviteFriendRequest struct {
	ReceiverID string `json:"receiverId"`
}

type respondFriendRequest struct {
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
}

type friendRequestResponse struct {
	Request models.FriendRequest `json:"request"`
}

type listFriendsResponse struct {
	Requests []models.FriendRequest `json:"requests"`
}
