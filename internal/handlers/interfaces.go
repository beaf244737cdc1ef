package handlers

import (
	"context"

	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/parties"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, token string)
}

// FriendStore captures operations required by the friend handlers.
type FriendStore interface {
	CreateRequest(ctx context.Context, request models.FriendRequest) error
	FindRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	ListForUser(ctx context.Context, userID string) ([]models.FriendRequest, error)
	UpdateStatus(ctx context.Context, requestID, status string) error
}

// NotificationStore lists and acknowledges a user's notifications.
type NotificationStore interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// PartyService is the party engine as seen by the HTTP layer.
type PartyService interface {
	ListParties(ctx context.Context, q parties.ListQuery) (parties.ListResult, error)
	PartyDetail(ctx context.Context, viewerID, partyID string) (parties.PartyView, error)
	HostedParties(ctx context.Context, actorID string) ([]parties.PartyView, error)
	AttendingParties(ctx context.Context, actorID string) ([]parties.PartyView, error)
	CreateParty(ctx context.Context, actorID string, input parties.CreatePartyInput) (parties.PartyView, error)
	UpdateParty(ctx context.Context, actorID, partyID string, input parties.UpdatePartyInput) (parties.PartyView, error)
	DeleteParty(ctx context.Context, actorID, partyID string) error

	CreateRequest(ctx context.Context, actorID, partyID string, input parties.CreateRequestInput) (parties.RequestView, error)
	RespondToRequest(ctx context.Context, actorID, requestID string, status models.RequestStatus) (parties.RequestView, error)
	RetractRequest(ctx context.Context, actorID, requestID string) error
	PartyRequests(ctx context.Context, actorID, partyID string) ([]parties.RequestView, error)
	MyRequests(ctx context.Context, actorID string) ([]parties.RequestView, error)

	Roster(ctx context.Context, partyID string) ([]parties.AttendeeView, error)
	PendingRatings(ctx context.Context, userID string) ([]parties.RatingObligation, error)
	SubmitReview(ctx context.Context, actorID string, input parties.SubmitReviewInput) (parties.ReviewView, error)
	FileReport(ctx context.Context, actorID string, input parties.FileReportInput) (parties.ReportView, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ PartyService = (*parties.Service)(nil)
