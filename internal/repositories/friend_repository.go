package repositories

import (
	"context"

	"github.com/partyhop/backend/internal/models"
)

// FriendRepository defines data access for friend requests and relationships.
type FriendRepository interface {
	CreateRequest(ctx context.Context, request models.FriendRequest) error
	FindRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	ListForUser(ctx context.Context, userID string) ([]models.FriendRequest, error)
	UpdateStatus(ctx context.Context, requestID, status string) error
	// AreFriends reports whether an accepted request exists in either direction.
	AreFriends(ctx context.Context, a, b string) (bool, error)
}
