package parties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partyhop/backend/internal/lifecycle"
	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

// CreatePartyInput is the payload accepted when a host creates a party.
type CreatePartyInput struct {
	Title           string    `json:"title" validate:"required,max=120"`
	Theme           string    `json:"theme" validate:"max=60"`
	Description     string    `json:"description" validate:"max=2000"`
	Date            time.Time `json:"date" validate:"required"`
	LocationName    string    `json:"locationName" validate:"required,max=200"`
	City            string    `json:"city" validate:"required,max=100"`
	Country         string    `json:"country" validate:"required,max=100"`
	ExactAddress    string    `json:"exactAddress" validate:"max=300"`
	Latitude        *float64  `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude       *float64  `json:"longitude" validate:"required,gte=-180,lte=180"`
	MaxGuests       int       `json:"maxGuests" validate:"gte=1,lte=10000"`
	Price           float64   `json:"price" validate:"gte=0"`
	IncludesAlcohol bool      `json:"includesAlcohol"`
	CoHostIDs       []string  `json:"coHostIds"`
}

// UpdatePartyInput carries a partial edit. Nil fields are left unchanged.
type UpdatePartyInput struct {
	Title           *string             `json:"title" validate:"omitnil,min=1,max=120"`
	Theme           *string             `json:"theme" validate:"omitnil,max=60"`
	Description     *string             `json:"description" validate:"omitnil,max=2000"`
	Date            *time.Time          `json:"date"`
	LocationName    *string             `json:"locationName" validate:"omitnil,min=1,max=200"`
	City            *string             `json:"city" validate:"omitnil,min=1,max=100"`
	Country         *string             `json:"country" validate:"omitnil,min=1,max=100"`
	ExactAddress    *string             `json:"exactAddress" validate:"omitnil,max=300"`
	Latitude        *float64            `json:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude       *float64            `json:"longitude" validate:"omitnil,gte=-180,lte=180"`
	MaxGuests       *int                `json:"maxGuests" validate:"omitnil,gte=1,lte=10000"`
	Price           *float64            `json:"price" validate:"omitnil,gte=0"`
	IncludesAlcohol *bool               `json:"includesAlcohol"`
	CoHostIDs       *[]string           `json:"coHostIds"`
	Status          *models.PartyStatus `json:"status"`
}

// CreateParty stores a new party hosted by actorID.
func (s *Service) CreateParty(ctx context.Context, actorID string, input CreatePartyInput) (PartyView, error) {
	if actorID == "" {
		return PartyView{}, errUnauthenticated()
	}
	if err := s.check(input); err != nil {
		return PartyView{}, err
	}

	now := s.now()
	if !input.Date.After(now) {
		return PartyView{}, errInvalid("date", "Party date must be in the future")
	}

	coHosts, err := s.validateCoHosts(ctx, actorID, input.CoHostIDs)
	if err != nil {
		return PartyView{}, err
	}

	status, _ := lifecycle.Evaluate(models.PartyUpcoming, input.Date, now, s.window)
	party := models.Party{
		ID:              uuid.NewString(),
		HostID:          actorID,
		Title:           s.clean(ctx, strings.TrimSpace(input.Title)),
		Theme:           strings.TrimSpace(input.Theme),
		Description:     s.clean(ctx, strings.TrimSpace(input.Description)),
		Date:            input.Date.UTC(),
		LocationName:    strings.TrimSpace(input.LocationName),
		City:            strings.TrimSpace(input.City),
		Country:         strings.TrimSpace(input.Country),
		ExactAddress:    strings.TrimSpace(input.ExactAddress),
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		MaxGuests:       input.MaxGuests,
		Price:           input.Price,
		IncludesAlcohol: input.IncludesAlcohol,
		Status:          status,
		CoHostIDs:       coHosts,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.parties.Create(ctx, party); err != nil {
		return PartyView{}, errInternal("create party", err)
	}

	logging.FromContext(ctx).Info("party created", "party_id", party.ID, "status", party.Status)
	return s.ownerView(ctx, party)
}

// UpdateParty applies a host edit. Setting status to cancelled is the
// cancellation path; no other status can be set directly.
func (s *Service) UpdateParty(ctx context.Context, actorID, partyID string, input UpdatePartyInput) (PartyView, error) {
	if actorID == "" {
		return PartyView{}, errUnauthenticated()
	}
	if err := s.check(input); err != nil {
		return PartyView{}, err
	}

	party, err := s.loadParty(ctx, partyID)
	if err != nil {
		return PartyView{}, err
	}
	if !party.IsHost(actorID) {
		return PartyView{}, errForbidden("Only the host can edit this party")
	}
	if party.Status == models.PartyCancelled {
		return PartyView{}, errInvalid("status", "Cancelled parties cannot be edited")
	}

	loadedStatus := party.Status
	now := s.now()
	cancelling := false
	if input.Status != nil && *input.Status != party.Status {
		if *input.Status != models.PartyCancelled {
			return PartyView{}, errInvalid("status", "Status can only be changed to cancelled")
		}
		if !party.Status.AcceptsRequests() {
			return PartyView{}, errInvalid("status", "Only upcoming or ongoing parties can be cancelled")
		}
		cancelling = true
	}

	if input.Title != nil {
		party.Title = s.clean(ctx, strings.TrimSpace(*input.Title))
	}
	if input.Theme != nil {
		party.Theme = strings.TrimSpace(*input.Theme)
	}
	if input.Description != nil {
		party.Description = s.clean(ctx, strings.TrimSpace(*input.Description))
	}
	if input.LocationName != nil {
		party.LocationName = strings.TrimSpace(*input.LocationName)
	}
	if input.City != nil {
		party.City = strings.TrimSpace(*input.City)
	}
	if input.Country != nil {
		party.Country = strings.TrimSpace(*input.Country)
	}
	if input.ExactAddress != nil {
		party.ExactAddress = strings.TrimSpace(*input.ExactAddress)
	}
	if input.Latitude != nil {
		party.Latitude = input.Latitude
	}
	if input.Longitude != nil {
		party.Longitude = input.Longitude
	}
	if input.MaxGuests != nil {
		party.MaxGuests = *input.MaxGuests
	}
	if input.Price != nil {
		party.Price = *input.Price
	}
	if input.IncludesAlcohol != nil {
		party.IncludesAlcohol = *input.IncludesAlcohol
	}
	if input.CoHostIDs != nil {
		coHosts, err := s.validateCoHosts(ctx, actorID, *input.CoHostIDs)
		if err != nil {
			return PartyView{}, err
		}
		party.CoHostIDs = coHosts
	}

	if cancelling {
		party.Status = models.PartyCancelled
	} else if input.Date != nil {
		if !input.Date.After(now) {
			return PartyView{}, errInvalid("date", "Party date must be in the future")
		}
		party.Date = input.Date.UTC()
		party.Status = lifecycle.AfterReschedule(party.Status, party.Date, now, s.window)
	}
	party.UpdatedAt = now

	if err := s.parties.Update(ctx, party, loadedStatus); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return PartyView{}, errInternal("update party", err)
		}
		if _, err := s.loadParty(ctx, partyID); err != nil {
			return PartyView{}, err
		}
		return PartyView{}, errConflict("Party status changed while editing, reload and try again")
	}

	if cancelling {
		s.notifyCancellation(ctx, party)
	}
	return s.ownerView(ctx, party)
}

// DeleteParty hard-deletes a party; its requests and attendees go with it.
func (s *Service) DeleteParty(ctx context.Context, actorID, partyID string) error {
	if actorID == "" {
		return errUnauthenticated()
	}
	party, err := s.loadParty(ctx, partyID)
	if err != nil {
		return err
	}
	if !party.IsHost(actorID) {
		return errForbidden("Only the host can delete this party")
	}
	if err := s.parties.Delete(ctx, party.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return errNotFound("Party not found")
		}
		return errInternal("delete party", err)
	}
	logging.FromContext(ctx).Info("party deleted", "party_id", party.ID)
	return nil
}

func (s *Service) validateCoHosts(ctx context.Context, hostID string, ids []string) ([]string, error) {
	coHosts, err := normalizeIDs("coHostIds", ids, maxCoHosts)
	if err != nil {
		return nil, err
	}
	for _, id := range coHosts {
		if id == hostID {
			return nil, errInvalid("coHostIds", "You cannot add yourself as a co-host")
		}
		ok, err := s.friends.AreFriends(ctx, hostID, id)
		if err != nil {
			return nil, errInternal("check co-host friendship", err)
		}
		if !ok {
			return nil, errInvalid("coHostIds", "Co-hosts must be your friends")
		}
	}
	return coHosts, nil
}

func (s *Service) notifyCancellation(ctx context.Context, party models.Party) {
	attendees, err := s.attendees.ListByParty(ctx, party.ID)
	if err != nil {
		logging.FromContext(ctx).Warn("cancellation notifications skipped", "party_id", party.ID, "error", err)
		return
	}
	for _, a := range attendees {
		s.notify(ctx, models.Notification{
			UserID:         a.UserID,
			Type:           models.NotificationPartyCancelled,
			Title:          "Party cancelled",
			Message:        fmt.Sprintf("%q has been cancelled by the host", party.Title),
			RelatedPartyID: party.ID,
			RelatedUserID:  party.HostID,
		})
	}
}
