package models

import "time"

// User represents an account within the PartyHop platform.
type User struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	AvatarURL   string
	Verified    bool
	AgeVerified bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FriendRequest represents the invitation workflow between two users.
type FriendRequest struct {
	ID          string     `json:"id"`
	Requester   string     `json:"requesterId"`
	Receiver    string     `json:"receiverId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusDeclined = "declined"
)

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Notification is an in-app message addressed to a single user.
type Notification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	RelatedPartyID string    `json:"relatedPartyId,omitempty"`
	RelatedUserID  string    `json:"relatedUserId,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Notification types emitted by the party engine.
const (
	NotificationPartyRequest      = "party_request"
	NotificationCompanionInvited  = "party_companion_request"
	NotificationRequestAccepted   = "request_accepted"
	NotificationRequestDeclined   = "request_declined"
	NotificationCompanionAccepted = "companion_accepted"
	NotificationPartyCancelled    = "party_cancelled"
	NotificationNewReview         = "new_review"
)
