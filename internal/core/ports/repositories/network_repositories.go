package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// NetworkMessageRepositoryFacade defines persistence operations for network message processing records.
type NetworkMessageRepositoryFacade interface {
	// SaveNetworkMessage inserts a processing record. A second record with the same
	// external ref fails with apperrors.ErrDuplicate.
	SaveNetworkMessage(ctx context.Context, message domain.NetworkMessage) error

	FindNetworkMessageByID(ctx context.Context, messageID string) (*domain.NetworkMessage, error)

	FindNetworkMessageByExternalRef(ctx context.Context, externalRef string) (*domain.NetworkMessage, error)

	// FindAuthorizationRequest returns the earliest AUTH_REQUEST message of an authorization.
	FindAuthorizationRequest(ctx context.Context, authorizationRef string) (*domain.NetworkMessage, error)

	// FindNetworkMessagesByGroupID lists the messages of a group oldest first.
	FindNetworkMessagesByGroupID(ctx context.Context, groupID string) ([]domain.NetworkMessage, error)

	// TransitionNetworkMessage moves a record from one status to another, reporting false
	// when the record was not in the expected status.
	TransitionNetworkMessage(ctx context.Context, messageID string, from, to domain.ProcessingStatus, now time.Time) (bool, error)
}

// DeclineRepositoryFacade defines persistence operations for declines.
type DeclineRepositoryFacade interface {
	SaveDecline(ctx context.Context, decline domain.Decline) error
	FindDeclineByID(ctx context.Context, declineID string) (*domain.Decline, error)
}

// ActivityRepositoryFacade defines persistence operations for the activity feed.
type ActivityRepositoryFacade interface {
	SaveActivity(ctx context.Context, activity domain.AccountActivity) error
	FindActivityByID(ctx context.Context, activityID string) (*domain.AccountActivity, error)
	// ListActivities lists the activities matching query newest first.
	ListActivities(ctx context.Context, query domain.ActivityQuery) ([]domain.AccountActivity, error)
}
