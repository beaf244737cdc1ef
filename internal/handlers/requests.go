package handlers

import (
	"net/http"
	"strings"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/parties"
)

// RequestHandler exposes join request creation and arbitration.
type RequestHandler struct {
	Service PartyService
	Limiter RateLimiter
}

// Create handles POST /api/v1/parties/{id}/requests.
func (h RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	if !allowRequest(h.Limiter, r, "join") {
		logging.FromContext(ctx).Warn("join request rate limited", "ip", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, errorResponse{Error: "too many requests, try again later"})
		return
	}

	var input parties.CreateRequestInput
	if !decodeBody(w, r, &input) {
		return
	}

	view, err := h.Service.CreateRequest(ctx, logging.UserIDFromContext(ctx), r.PathValue("id"), input)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, view)
}

// ListForParty handles GET /api/v1/parties/{id}/requests.
func (h RequestHandler) ListForParty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	views, err := h.Service.PartyRequests(ctx, logging.UserIDFromContext(ctx), r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, requestListResponse{Requests: nonNilSlice(views)})
}

// Mine handles GET /api/v1/requests.
func (h RequestHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	views, err := h.Service.MyRequests(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, requestListResponse{Requests: nonNilSlice(views)})
}

// Respond handles PATCH /api/v1/requests/{id}/status.
func (h RequestHandler) Respond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	var body respondRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	status := models.RequestStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	view, err := h.Service.RespondToRequest(ctx, logging.UserIDFromContext(ctx), r.PathValue("id"), status)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

// Retract handles DELETE /api/v1/requests/{id}.
func (h RequestHandler) Retract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	if err := h.Service.RetractRequest(ctx, logging.UserIDFromContext(ctx), r.PathValue("id")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type respondRequestBody struct {
	Status string `json:"status"`
}

type requestListResponse struct {
	Requests []parties.RequestView `json:"requests"`
}
