package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
)

func (t *memTx) SaveNetworkMessage(_ context.Context, message domain.NetworkMessage) error {
	if _, exists := t.state.messageByRef[message.ExternalRef]; exists {
		return fmt.Errorf("network message ref %s: %w", message.ExternalRef, apperrors.ErrDuplicate)
	}
	t.state.messages[message.NetworkMessageID] = message
	t.state.messageByRef[message.ExternalRef] = message.NetworkMessageID
	return nil
}

func (t *memTx) FindNetworkMessageByID(_ context.Context, messageID string) (*domain.NetworkMessage, error) {
	message, ok := t.state.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("network message %s: %w", messageID, apperrors.ErrNotFound)
	}
	return &message, nil
}

func (t *memTx) FindNetworkMessageByExternalRef(ctx context.Context, externalRef string) (*domain.NetworkMessage, error) {
	id, ok := t.state.messageByRef[externalRef]
	if !ok {
		return nil, fmt.Errorf("network message ref %s: %w", externalRef, apperrors.ErrNotFound)
	}
	return t.FindNetworkMessageByID(ctx, id)
}

func (t *memTx) FindAuthorizationRequest(_ context.Context, authorizationRef string) (*domain.NetworkMessage, error) {
	var earliest *domain.NetworkMessage
	for _, message := range t.state.messages {
		if message.Type != domain.AuthRequest || message.AuthorizationRef != authorizationRef {
			continue
		}
		if earliest == nil || messageBefore(message, *earliest) {
			m := message
			earliest = &m
		}
	}
	if earliest == nil {
		return nil, fmt.Errorf("authorization %s: %w", authorizationRef, apperrors.ErrNotFound)
	}
	return earliest, nil
}

func (t *memTx) FindNetworkMessagesByGroupID(_ context.Context, groupID string) ([]domain.NetworkMessage, error) {
	var result []domain.NetworkMessage
	for _, message := range t.state.messages {
		if message.GroupID == groupID {
			result = append(result, message)
		}
	}
	sort.Slice(result, func(i, j int) bool { return messageBefore(result[i], result[j]) })
	return result, nil
}

func (t *memTx) TransitionNetworkMessage(_ context.Context, messageID string, from, to domain.ProcessingStatus, now time.Time) (bool, error) {
	message, ok := t.state.messages[messageID]
	if !ok {
		return false, fmt.Errorf("network message %s: %w", messageID, apperrors.ErrNotFound)
	}
	if message.Status != from {
		return false, nil
	}
	if err := message.Transition(to); err != nil {
		return false, err
	}
	message.LastUpdatedAt = now
	t.state.messages[messageID] = message
	return true, nil
}

func messageBefore(a, b domain.NetworkMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.NetworkMessageID < b.NetworkMessageID
}

func (t *memTx) SaveDecline(_ context.Context, decline domain.Decline) error {
	t.state.declines[decline.DeclineID] = decline
	return nil
}

func (t *memTx) FindDeclineByID(_ context.Context, declineID string) (*domain.Decline, error) {
	decline, ok := t.state.declines[declineID]
	if !ok {
		return nil, fmt.Errorf("decline %s: %w", declineID, apperrors.ErrNotFound)
	}
	return &decline, nil
}

func (t *memTx) SaveActivity(_ context.Context, activity domain.AccountActivity) error {
	t.state.activities[activity.ActivityID] = activity
	return nil
}

func (t *memTx) FindActivityByID(_ context.Context, activityID string) (*domain.AccountActivity, error) {
	activity, ok := t.state.activities[activityID]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", activityID, apperrors.ErrNotFound)
	}
	return &activity, nil
}

func (t *memTx) ListActivities(_ context.Context, query domain.ActivityQuery) ([]domain.AccountActivity, error) {
	var result []domain.AccountActivity
	for _, activity := range t.state.activities {
		if activity.AccountID != query.AccountID || !activity.VisibleAt(query.AsOf) {
			continue
		}
		if query.After != nil && !query.After.After(activity) {
			continue
		}
		result = append(result, activity)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ActivityTime.Equal(result[j].ActivityTime) {
			return result[i].ActivityTime.After(result[j].ActivityTime)
		}
		return result[i].ActivityID > result[j].ActivityID
	})
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}
