package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/parties"
)

const maxBodyBytes = 1 << 20

// PartyHandler exposes browsing, detail and host management of parties.
type PartyHandler struct {
	Service PartyService
}

// List handles GET /api/v1/parties.
func (h PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Service.ListParties(ctx, q)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if result.Parties == nil {
		result.Parties = []parties.PartyView{}
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

// Create handles POST /api/v1/parties.
func (h PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	var input parties.CreatePartyInput
	if !decodeBody(w, r, &input) {
		return
	}

	view, err := h.Service.CreateParty(ctx, logging.UserIDFromContext(ctx), input)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, view)
}

// Mine handles GET /api/v1/parties/mine.
func (h PartyHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	views, err := h.Service.HostedParties(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, partyListResponse{Parties: nonNilSlice(views)})
}

// Attending handles GET /api/v1/parties/attending.
func (h PartyHandler) Attending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	views, err := h.Service.AttendingParties(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, partyListResponse{Parties: nonNilSlice(views)})
}

// Get handles GET /api/v1/parties/{id}. Anonymous callers get the masked view.
func (h PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	view, err := h.Service.PartyDetail(ctx, logging.UserIDFromContext(ctx), r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

// Update handles PATCH /api/v1/parties/{id}.
func (h PartyHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	var input parties.UpdatePartyInput
	if !decodeBody(w, r, &input) {
		return
	}

	view, err := h.Service.UpdateParty(ctx, logging.UserIDFromContext(ctx), r.PathValue("id"), input)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

// Delete handles DELETE /api/v1/parties/{id}.
func (h PartyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	if err := h.Service.DeleteParty(ctx, logging.UserIDFromContext(ctx), r.PathValue("id")); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Attendees handles GET /api/v1/parties/{id}/attendees.
func (h PartyHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	roster, err := h.Service.Roster(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, rosterResponse{Attendees: nonNilSlice(roster)})
}

// PendingRatings handles GET /api/v1/parties/rate/pending.
func (h PartyHandler) PendingRatings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !serviceReady(w, r, h.Service) {
		return
	}

	pending, err := h.Service.PendingRatings(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, pendingRatingsResponse{Pending: nonNilSlice(pending)})
}

// parseListQuery reads the browse filters from the query string. Defaults are
// applied by the service.
func parseListQuery(values url.Values) (parties.ListQuery, error) {
	var (
		q   parties.ListQuery
		err error
	)

	if q.Lat, err = optionalFloat(values, "lat"); err != nil {
		return q, err
	}
	if q.Lng, err = optionalFloat(values, "lng"); err != nil {
		return q, err
	}
	if q.RadiusKm, err = optionalFloat(values, "radius"); err != nil {
		return q, err
	}
	if q.Offset, err = optionalInt(values, "offset"); err != nil {
		return q, err
	}
	if q.Limit, err = optionalInt(values, "limit"); err != nil {
		return q, err
	}

	q.City = values.Get("city")
	q.Country = values.Get("country")
	q.Region = values.Get("region")
	q.Sort = strings.ToLower(strings.TrimSpace(values.Get("sort")))

	for _, raw := range values["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				q.Statuses = append(q.Statuses, models.PartyStatus(part))
			}
		}
	}

	return q, nil
}

func optionalFloat(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidParam(key, key+" must be a number")
	}
	return &v, nil
}

func optionalInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(key, key+" must be an integer")
	}
	return v, nil
}

func invalidParam(field, msg string) error {
	return &parties.Error{Kind: parties.KindValidationFailed, Message: msg, Fields: map[string]string{field: msg}}
}

// decodeBody decodes the JSON request body into dst, answering 400 itself
// when the body is unreadable.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		logging.FromContext(ctx).Warn("invalid request payload", "path", r.URL.Path, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func serviceReady(w http.ResponseWriter, r *http.Request, svc PartyService) bool {
	if svc != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("party service unavailable")
	respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "party service unavailable"})
	return false
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

type partyListResponse struct {
	Parties []parties.PartyView `json:"parties"`
}

type rosterResponse struct {
	Attendees []parties.AttendeeView `json:"attendees"`
}

type pendingRatingsResponse struct {
	Pending []parties.RatingObligation `json:"pending"`
}
