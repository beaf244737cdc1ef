package parties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

// CreateRequestInput is the payload of a join request.
type CreateRequestInput struct {
	Message      string   `json:"message" validate:"max=500"`
	PledgedItems string   `json:"pledgedItems" validate:"max=500"`
	ComingWith   []string `json:"comingWith"`
}

// RequestView is a join request enriched with the people involved.
type RequestView struct {
	ID           string               `json:"id"`
	PartyID      string               `json:"partyId"`
	PartyTitle   string               `json:"partyTitle,omitempty"`
	Requester    UserSummary          `json:"requester"`
	Message      string               `json:"message"`
	PledgedItems string               `json:"pledgedItems"`
	ComingWith   []UserSummary        `json:"comingWith"`
	Status       models.RequestStatus `json:"status"`
	CreatedAt    time.Time            `json:"createdAt"`
	RespondedAt  *time.Time           `json:"respondedAt,omitempty"`
}

const ageVerificationMessage = "Age verification required for parties that include alcohol"

// CreateRequest files a pending join request from actorID for partyID. The
// first violated precondition is returned; nothing is written in that case.
func (s *Service) CreateRequest(ctx context.Context, actorID, partyID string, input CreateRequestInput) (RequestView, error) {
	if actorID == "" {
		return RequestView{}, errUnauthenticated()
	}
	if err := s.check(input); err != nil {
		return RequestView{}, err
	}

	party, err := s.loadParty(ctx, partyID)
	if err != nil {
		return RequestView{}, err
	}
	if party.IsHost(actorID) {
		return RequestView{}, errInvalid("", "You cannot request to join your own party")
	}
	if !party.Status.AcceptsRequests() {
		return RequestView{}, errInvalid("", "This party is no longer accepting requests")
	}

	if _, err := s.requests.FindActive(ctx, party.ID, actorID); err == nil {
		return RequestView{}, errConflict("You already have an active request for this party")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return RequestView{}, errInternal("find active request", err)
	}

	requester, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return RequestView{}, errUnauthenticated()
		}
		return RequestView{}, errInternal("load requester", err)
	}
	if party.IncludesAlcohol && !requester.AgeVerified {
		return RequestView{}, errForbidden(ageVerificationMessage)
	}

	companions, err := s.validateCompanions(ctx, party, actorID, input.ComingWith)
	if err != nil {
		return RequestView{}, err
	}

	now := s.now()
	request := models.PartyRequest{
		ID:           uuid.NewString(),
		PartyID:      party.ID,
		UserID:       actorID,
		Message:      s.clean(ctx, strings.TrimSpace(input.Message)),
		PledgedItems: s.clean(ctx, strings.TrimSpace(input.PledgedItems)),
		ComingWith:   ids(companions),
		Status:       models.RequestPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return RequestView{}, errConflict("You already have an active request for this party")
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return RequestView{}, errNotFound("Party not found")
		}
		return RequestView{}, errInternal("create request", err)
	}

	logging.FromContext(ctx).Info("party request created", "party_id", party.ID, "request_id", request.ID)

	name := displayName(requester)
	s.notify(ctx, models.Notification{
		UserID:         party.HostID,
		Type:           models.NotificationPartyRequest,
		Title:          "New party request",
		Message:        fmt.Sprintf("%s wants to join %q", name, party.Title),
		RelatedPartyID: party.ID,
		RelatedUserID:  actorID,
	})
	for _, c := range companions {
		s.notify(ctx, models.Notification{
			UserID:         c.ID,
			Type:           models.NotificationCompanionInvited,
			Title:          "You were added to a party request",
			Message:        fmt.Sprintf("%s asked to bring you to %q", name, party.Title),
			RelatedPartyID: party.ID,
			RelatedUserID:  actorID,
		})
	}

	return RequestView{
		ID:           request.ID,
		PartyID:      party.ID,
		PartyTitle:   party.Title,
		Requester:    summarize(requester),
		Message:      request.Message,
		PledgedItems: request.PledgedItems,
		ComingWith:   companions,
		Status:       request.Status,
		CreatedAt:    request.CreatedAt,
	}, nil
}

func (s *Service) validateCompanions(ctx context.Context, party models.Party, requesterID string, raw []string) ([]UserSummary, error) {
	companionIDs, err := normalizeIDs("comingWith", raw, maxCompanions)
	if err != nil {
		return nil, err
	}
	if len(companionIDs) == 0 {
		return []UserSummary{}, nil
	}

	for _, id := range companionIDs {
		if id == requesterID {
			return nil, errInvalid("comingWith", "You cannot list yourself as a companion")
		}
		if id == party.HostID {
			return nil, errInvalid("comingWith", "The host cannot be listed as a companion")
		}
		ok, err := s.friends.AreFriends(ctx, requesterID, id)
		if err != nil {
			return nil, errInternal("check companion friendship", err)
		}
		if !ok {
			return nil, errInvalid("comingWith", "Companions must be your friends")
		}
	}

	users, err := s.users.FindByIDs(ctx, companionIDs)
	if err != nil {
		return nil, errInternal("load companions", err)
	}
	out := make([]UserSummary, 0, len(companionIDs))
	for _, id := range companionIDs {
		u, ok := users[id]
		if !ok {
			return nil, errInvalid("comingWith", "Companion not found")
		}
		if party.IncludesAlcohol && !u.AgeVerified {
			return nil, errForbidden(fmt.Sprintf("%s: %s must be age verified", ageVerificationMessage, displayName(u)))
		}
		out = append(out, summarize(u))
	}
	return out, nil
}

// RespondToRequest lets the host or a co-host accept or decline a pending
// request. A co-host cannot answer a request they filed themselves.
func (s *Service) RespondToRequest(ctx context.Context, actorID, requestID string, status models.RequestStatus) (RequestView, error) {
	if actorID == "" {
		return RequestView{}, errUnauthenticated()
	}
	if status != models.RequestAccepted && status != models.RequestDeclined {
		return RequestView{}, errInvalid("status", "status must be one of: accepted, declined")
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return RequestView{}, err
	}
	party, err := s.loadParty(ctx, request.PartyID)
	if err != nil {
		return RequestView{}, err
	}
	if !party.CanModerate(actorID) {
		return RequestView{}, errForbidden("Only the host or a co-host can respond to requests")
	}
	if request.UserID == actorID {
		return RequestView{}, errForbidden("You cannot respond to your own request")
	}
	if request.Status != models.RequestPending {
		return RequestView{}, errInvalid("status", fmt.Sprintf("This request has already been %s", request.Status))
	}
	if !party.Status.AcceptsRequests() {
		return RequestView{}, errInvalid("status", "This party is no longer accepting requests")
	}

	now := s.now()
	switch status {
	case models.RequestAccepted:
		attendee := models.PartyAttendee{
			ID:        uuid.NewString(),
			PartyID:   party.ID,
			UserID:    request.UserID,
			CreatedAt: now,
		}
		err = s.requests.Accept(ctx, request.ID, attendee, now)
	case models.RequestDeclined:
		err = s.requests.Decline(ctx, request.ID, now)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return RequestView{}, errConflict("This request is no longer pending")
		}
		return RequestView{}, errInternal("respond to request", err)
	}

	request.Status = status
	request.RespondedAt = &now
	request.UpdatedAt = now
	logging.FromContext(ctx).Info("party request answered", "party_id", party.ID, "request_id", request.ID, "status", status)

	s.notifyResponse(ctx, party, request)

	views, err := s.requestViews(ctx, []models.PartyRequest{request}, map[string]models.Party{party.ID: party})
	if err != nil {
		return RequestView{}, err
	}
	return views[0], nil
}

func (s *Service) notifyResponse(ctx context.Context, party models.Party, request models.PartyRequest) {
	if request.Status == models.RequestDeclined {
		s.notify(ctx, models.Notification{
			UserID:         request.UserID,
			Type:           models.NotificationRequestDeclined,
			Title:          "Request declined",
			Message:        fmt.Sprintf("Your request to join %q was declined", party.Title),
			RelatedPartyID: party.ID,
			RelatedUserID:  party.HostID,
		})
		return
	}

	s.notify(ctx, models.Notification{
		UserID:         request.UserID,
		Type:           models.NotificationRequestAccepted,
		Title:          "Request accepted",
		Message:        fmt.Sprintf("You're in! Your request to join %q was accepted", party.Title),
		RelatedPartyID: party.ID,
		RelatedUserID:  party.HostID,
	})
	for _, id := range request.ComingWith {
		s.notify(ctx, models.Notification{
			UserID:         id,
			Type:           models.NotificationCompanionAccepted,
			Title:          "You're coming along",
			Message:        fmt.Sprintf("A friend's request to bring you to %q was accepted", party.Title),
			RelatedPartyID: party.ID,
			RelatedUserID:  request.UserID,
		})
	}
}

// RetractRequest deletes a pending request. Only its requester may do so.
func (s *Service) RetractRequest(ctx context.Context, actorID, requestID string) error {
	if actorID == "" {
		return errUnauthenticated()
	}
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.UserID != actorID {
		return errForbidden("Only the requester can retract this request")
	}
	if request.Status != models.RequestPending {
		return errInvalid("status", "Only pending requests can be retracted")
	}
	if err := s.requests.DeletePending(ctx, request.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return errConflict("This request is no longer pending")
		}
		return errInternal("retract request", err)
	}
	logging.FromContext(ctx).Info("party request retracted", "party_id", request.PartyID, "request_id", request.ID)
	return nil
}

// PartyRequests lists every request for a party. Host and co-hosts only.
func (s *Service) PartyRequests(ctx context.Context, actorID, partyID string) ([]RequestView, error) {
	if actorID == "" {
		return nil, errUnauthenticated()
	}
	party, err := s.loadParty(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if !party.CanModerate(actorID) {
		return nil, errForbidden("Only the host or a co-host can view requests")
	}
	requests, err := s.requests.ListByParty(ctx, party.ID)
	if err != nil {
		return nil, errInternal("list party requests", err)
	}
	return s.requestViews(ctx, requests, map[string]models.Party{party.ID: party})
}

// MyRequests lists the caller's own requests, newest first.
func (s *Service) MyRequests(ctx context.Context, actorID string) ([]RequestView, error) {
	if actorID == "" {
		return nil, errUnauthenticated()
	}
	requests, err := s.requests.ListByUser(ctx, actorID)
	if err != nil {
		return nil, errInternal("list user requests", err)
	}

	parties := make(map[string]models.Party, len(requests))
	for _, r := range requests {
		if _, ok := parties[r.PartyID]; ok {
			continue
		}
		party, err := s.parties.FindByID(ctx, r.PartyID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, errInternal("load request party", err)
		}
		parties[party.ID] = party
	}
	return s.requestViews(ctx, requests, parties)
}

func (s *Service) loadRequest(ctx context.Context, requestID string) (models.PartyRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return models.PartyRequest{}, errNotFound("Request not found")
	}
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.PartyRequest{}, errNotFound("Request not found")
		}
		return models.PartyRequest{}, errInternal("load request", err)
	}
	return request, nil
}

func (s *Service) requestViews(ctx context.Context, requests []models.PartyRequest, parties map[string]models.Party) ([]RequestView, error) {
	var userIDs []string
	for _, r := range requests {
		userIDs = append(userIDs, r.UserID)
		userIDs = append(userIDs, r.ComingWith...)
	}
	users, err := s.lookupUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		companions := make([]UserSummary, 0, len(r.ComingWith))
		for _, id := range r.ComingWith {
			companions = append(companions, summaryFor(users, id))
		}
		views = append(views, RequestView{
			ID:           r.ID,
			PartyID:      r.PartyID,
			PartyTitle:   parties[r.PartyID].Title,
			Requester:    summaryFor(users, r.UserID),
			Message:      r.Message,
			PledgedItems: r.PledgedItems,
			ComingWith:   companions,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt,
			RespondedAt:  r.RespondedAt,
		})
	}
	return views, nil
}

func ids(users []UserSummary) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
