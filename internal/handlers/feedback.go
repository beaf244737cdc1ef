package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/parties"
	"github.com/partyhop/backend/internal/repositories"
)

// FeedbackHandler accepts reviews and moderation reports.
type FeedbackHandler struct {
	Service PartyService
}

// Review handles POST /api/v1/reviews.
func (h FeedbackHandler) Review(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	var input parties.SubmitReviewInput
	if !decodeBody(w, r, &input) {
		return
	}

	view, err := h.Service.SubmitReview(ctx, logging.UserIDFromContext(ctx), input)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, view)
}

// Report handles POST /api/v1/reports.
func (h FeedbackHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	var input parties.FileReportInput
	if !decodeBody(w, r, &input) {
		return
	}

	view, err := h.Service.FileReport(ctx, logging.UserIDFromContext(ctx), input)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, view)
}

// NotificationHandler lists and acknowledges the caller's notifications.
type NotificationHandler struct {
	Notifications NotificationStore
}

// List handles GET /api/v1/notifications.
func (h NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}
	if h.Notifications == nil {
		logger.Error("notification store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "notification service unavailable"})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 100"})
			return
		}
		limit = v
	}

	items, err := h.Notifications.ListForUser(ctx, userID, limit)
	if err != nil {
		logger.Error("list notifications failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, notificationListResponse{Notifications: nonNilSlice(items)})
}

// MarkRead handles POST /api/v1/notifications/{id}/read.
func (h NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}
	if h.Notifications == nil {
		logger.Error("notification store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "notification service unavailable"})
		return
	}

	if err := h.Notifications.MarkRead(ctx, userID, r.PathValue("id")); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "Notification not found"})
			return
		}
		logger.Error("mark notification read failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type notificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
}
