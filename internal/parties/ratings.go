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

// Rating roles.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// RatingObligation names the people a user still owes a rating for one party.
type RatingObligation struct {
	Party       PartyView     `json:"party"`
	Role        string        `json:"role"`
	UsersToRate []UserSummary `json:"usersToRate"`
}

// SubmitReviewInput is the payload of a rating.
type SubmitReviewInput struct {
	TargetID string            `json:"targetId" validate:"required"`
	PartyID  string            `json:"partyId" validate:"required"`
	Rating   int               `json:"rating" validate:"min=1,max=5"`
	Content  string            `json:"content" validate:"max=1000"`
	Type     models.ReviewType `json:"type" validate:"required,oneof=host_review guest_review"`
}

// ReviewView is a stored review as returned to its author.
type ReviewView struct {
	ID        string            `json:"id"`
	AuthorID  string            `json:"authorId"`
	TargetID  string            `json:"targetId"`
	PartyID   string            `json:"partyId"`
	Rating    int               `json:"rating"`
	Content   string            `json:"content"`
	Type      models.ReviewType `json:"type"`
	CreatedAt time.Time         `json:"createdAt"`
}

// PendingRatings computes the ratings userID still owes, one entry per party
// and role. Hosted parties come first.
func (s *Service) PendingRatings(ctx context.Context, userID string) ([]RatingObligation, error) {
	if userID == "" {
		return nil, errUnauthenticated()
	}

	owedGuests, err := s.attendees.ListUnratedGuests(ctx, userID)
	if err != nil {
		return nil, errInternal("list unrated guests", err)
	}
	owedHosts, err := s.attendees.ListUnratedHosts(ctx, userID)
	if err != nil {
		return nil, errInternal("list unrated hosts", err)
	}

	type entry struct {
		partyID string
		role    string
		users   []string
	}
	var (
		entries []entry
		index   = make(map[string]int)
	)
	add := func(partyID, role, target string) {
		key := role + ":" + partyID
		i, ok := index[key]
		if !ok {
			i = len(entries)
			index[key] = i
			entries = append(entries, entry{partyID: partyID, role: role})
		}
		entries[i].users = append(entries[i].users, target)
	}

	parties := make(map[string]models.Party)
	for _, a := range owedGuests {
		add(a.PartyID, RoleHost, a.UserID)
	}
	for _, a := range owedHosts {
		party, ok := parties[a.PartyID]
		if !ok {
			party, err = s.loadFinished(ctx, a.PartyID)
			if err != nil {
				return nil, err
			}
			if party.ID == "" {
				continue
			}
			parties[party.ID] = party
		}
		add(party.ID, RoleGuest, party.HostID)
	}
	if len(entries) == 0 {
		return []RatingObligation{}, nil
	}

	var (
		toEnrich []models.Party
		userIDs  []string
	)
	for _, e := range entries {
		if _, ok := parties[e.partyID]; !ok {
			party, err := s.loadFinished(ctx, e.partyID)
			if err != nil {
				return nil, err
			}
			if party.ID == "" {
				continue
			}
			parties[party.ID] = party
		}
		userIDs = append(userIDs, e.users...)
	}
	for _, p := range parties {
		toEnrich = append(toEnrich, p)
	}

	views, err := s.enrich(ctx, toEnrich, func(models.Party) bool { return true }, false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]PartyView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	users, err := s.lookupUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]RatingObligation, 0, len(entries))
	for _, e := range entries {
		view, ok := byID[e.partyID]
		if !ok {
			continue
		}
		targets := make([]UserSummary, 0, len(e.users))
		for _, id := range e.users {
			targets = append(targets, summaryFor(users, id))
		}
		out = append(out, RatingObligation{Party: view, Role: e.role, UsersToRate: targets})
	}
	return out, nil
}

// loadFinished returns the party when it exists and is finished, or a zero
// Party otherwise.
func (s *Service) loadFinished(ctx context.Context, partyID string) (models.Party, error) {
	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Party{}, nil
		}
		return models.Party{}, errInternal("load party", err)
	}
	if party.Status != models.PartyFinished {
		return models.Party{}, nil
	}
	return party, nil
}

// SubmitReview records a rating and clears the matching obligation. Each
// direction between a host and a guest can be rated once per party.
func (s *Service) SubmitReview(ctx context.Context, actorID string, input SubmitReviewInput) (ReviewView, error) {
	if actorID == "" {
		return ReviewView{}, errUnauthenticated()
	}
	if err := s.check(input); err != nil {
		return ReviewView{}, err
	}
	if input.TargetID == actorID {
		return ReviewView{}, errInvalid("targetId", "You cannot review yourself")
	}

	party, err := s.loadParty(ctx, input.PartyID)
	if err != nil {
		return ReviewView{}, err
	}
	if party.Status != models.PartyFinished {
		return ReviewView{}, errInvalid("partyId", "Reviews can only be left for finished parties")
	}

	switch input.Type {
	case models.GuestReview:
		if input.TargetID != party.HostID {
			return ReviewView{}, errInvalid("targetId", "Guest reviews must target the host")
		}
		row, err := s.findAttendee(ctx, party.ID, actorID, "Only attendees can review the host")
		if err != nil {
			return ReviewView{}, err
		}
		if row.GuestRated {
			return ReviewView{}, errConflict("You have already reviewed this host")
		}
	case models.HostReview:
		if !party.IsHost(actorID) {
			return ReviewView{}, errForbidden("Only the host can review guests")
		}
		row, err := s.findAttendee(ctx, party.ID, input.TargetID, "")
		if err != nil {
			return ReviewView{}, err
		}
		if row.HostRated {
			return ReviewView{}, errConflict("You have already reviewed this guest")
		}
	}

	review := models.Review{
		ID:        uuid.NewString(),
		AuthorID:  actorID,
		TargetID:  input.TargetID,
		PartyID:   party.ID,
		Rating:    input.Rating,
		Content:   s.clean(ctx, strings.TrimSpace(input.Content)),
		Type:      input.Type,
		CreatedAt: s.now(),
	}
	if err := s.reviews.Submit(ctx, review); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return ReviewView{}, errConflict("This rating has already been submitted")
		}
		return ReviewView{}, errInternal("submit review", err)
	}

	logging.FromContext(ctx).Info("review submitted", "party_id", party.ID, "review_id", review.ID, "type", review.Type)

	author, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		author = models.User{}
	}
	s.notify(ctx, models.Notification{
		UserID:         review.TargetID,
		Type:           models.NotificationNewReview,
		Title:          "New review",
		Message:        fmt.Sprintf("%s left you a %d-star review for %q", displayName(author), review.Rating, party.Title),
		RelatedPartyID: party.ID,
		RelatedUserID:  actorID,
	})

	return ReviewView{
		ID:        review.ID,
		AuthorID:  review.AuthorID,
		TargetID:  review.TargetID,
		PartyID:   review.PartyID,
		Rating:    review.Rating,
		Content:   review.Content,
		Type:      review.Type,
		CreatedAt: review.CreatedAt,
	}, nil
}

// findAttendee loads an attendee row. An empty forbidden message reports a
// missing row as a validation failure instead of a denial.
func (s *Service) findAttendee(ctx context.Context, partyID, userID, forbidden string) (models.PartyAttendee, error) {
	row, err := s.attendees.Find(ctx, partyID, userID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.PartyAttendee{}, errInternal("load attendee", err)
	}
	if forbidden != "" {
		return models.PartyAttendee{}, errForbidden(forbidden)
	}
	return models.PartyAttendee{}, errInvalid("targetId", "That user did not attend this party")
}
