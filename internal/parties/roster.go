package parties

import (
	"context"
	"time"

	"github.com/partyhop/backend/internal/models"
)

// AttendeeView is one roster entry with the friends the attendee brings along.
type AttendeeView struct {
	User       UserSummary   `json:"user"`
	Companions []UserSummary `json:"companions"`
	JoinedAt   time.Time     `json:"joinedAt"`
}

// Roster lists the attendees of a party. Companions come from the attendee's
// accepted request; they are not attendees in their own right.
func (s *Service) Roster(ctx context.Context, partyID string) ([]AttendeeView, error) {
	party, err := s.loadParty(ctx, partyID)
	if err != nil {
		return nil, err
	}

	attendees, err := s.attendees.ListByParty(ctx, party.ID)
	if err != nil {
		return nil, errInternal("list attendees", err)
	}
	requests, err := s.requests.ListByParty(ctx, party.ID)
	if err != nil {
		return nil, errInternal("list party requests", err)
	}

	companions := make(map[string][]string, len(requests))
	for _, r := range requests {
		if r.Status == models.RequestAccepted {
			companions[r.UserID] = r.ComingWith
		}
	}

	var userIDs []string
	for _, a := range attendees {
		userIDs = append(userIDs, a.UserID)
		userIDs = append(userIDs, companions[a.UserID]...)
	}
	users, err := s.lookupUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]AttendeeView, 0, len(attendees))
	for _, a := range attendees {
		with := make([]UserSummary, 0, len(companions[a.UserID]))
		for _, id := range companions[a.UserID] {
			with = append(with, summaryFor(users, id))
		}
		views = append(views, AttendeeView{
			User:       summaryFor(users, a.UserID),
			Companions: with,
			JoinedAt:   a.CreatedAt,
		})
	}
	return views, nil
}
