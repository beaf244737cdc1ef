package parties

import (
	"context"
	"time"

	"github.com/partyhop/backend/internal/models"
)

// PartyStore persists parties. Reads populate Party.AttendeeCount.
type PartyStore interface {
	Create(ctx context.Context, party models.Party) error
	FindByID(ctx context.Context, id string) (models.Party, error)
	// Update writes party only while its stored status is still from and
	// returns repositories.ErrNotFound otherwise.
	Update(ctx context.Context, party models.Party, from models.PartyStatus) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter models.PartySearch) ([]models.Party, error)
	ListByHost(ctx context.Context, hostID string) ([]models.Party, error)
	ListAttending(ctx context.Context, userID string) ([]models.Party, error)
}

// RequestStore persists join requests.
type RequestStore interface {
	// Create fails with repositories.ErrConflict when an active request already exists.
	Create(ctx context.Context, request models.PartyRequest) error
	FindByID(ctx context.Context, id string) (models.PartyRequest, error)
	FindActive(ctx context.Context, partyID, userID string) (models.PartyRequest, error)
	ListByParty(ctx context.Context, partyID string) ([]models.PartyRequest, error)
	ListByUser(ctx context.Context, userID string) ([]models.PartyRequest, error)
	// Accept moves a pending request to accepted and inserts the attendee in one
	// transaction. It returns repositories.ErrNotFound if the request is no longer pending.
	Accept(ctx context.Context, requestID string, attendee models.PartyAttendee, at time.Time) error
	// Decline returns repositories.ErrNotFound if the request is no longer pending.
	Decline(ctx context.Context, requestID string, at time.Time) error
	// DeletePending returns repositories.ErrNotFound if the request is no longer pending.
	DeletePending(ctx context.Context, requestID string) error
}

// AttendeeStore reads the roster.
type AttendeeStore interface {
	Find(ctx context.Context, partyID, userID string) (models.PartyAttendee, error)
	ListByParty(ctx context.Context, partyID string) ([]models.PartyAttendee, error)
	// Preview returns up to limit attendee avatar URLs per party, oldest attendees first.
	Preview(ctx context.Context, partyIDs []string, limit int) (map[string][]string, error)
	// ListUnratedGuests returns attendee rows of finished parties hosted by hostID with hostRated=false.
	ListUnratedGuests(ctx context.Context, hostID string) ([]models.PartyAttendee, error)
	// ListUnratedHosts returns userID's attendee rows on finished parties with guestRated=false.
	ListUnratedHosts(ctx context.Context, userID string) ([]models.PartyAttendee, error)
}

// ReviewStore persists reviews.
type ReviewStore interface {
	// Submit stores the review and flips the matching attendee flag in one
	// transaction. It returns repositories.ErrConflict if the flag is already set.
	Submit(ctx context.Context, review models.Review) error
}

// ReportStore persists moderation reports.
type ReportStore interface {
	Create(ctx context.Context, report models.Report) error
}

// UserDirectory resolves user identities.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// FriendChecker answers whether two users are accepted friends.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// Notifier delivers notifications without blocking the caller for long.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// Cleaner sanitises free text before it is stored.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}
