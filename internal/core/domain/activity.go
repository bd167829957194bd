package domain

import "time"

// ActivityType classifies an activity feed record.
type ActivityType string

const (
	ActivityNetworkAuthorization ActivityType = "NETWORK_AUTHORIZATION"
	ActivityNetworkCapture       ActivityType = "NETWORK_CAPTURE"
	ActivityNetworkRefund        ActivityType = "NETWORK_REFUND"
	ActivityReallocate           ActivityType = "REALLOCATE"
	ActivityDeposit              ActivityType = "DEPOSIT"
	ActivityWithdraw             ActivityType = "WITHDRAW"
	ActivityManual               ActivityType = "MANUAL"
	ActivityHoldRelease          ActivityType = "HOLD_RELEASE"
)

// ActivityStatus is the user facing status of an activity.
type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "PENDING"
	ActivityApproved  ActivityStatus = "APPROVED"
	ActivityDeclined  ActivityStatus = "DECLINED"
	ActivityProcessed ActivityStatus = "PROCESSED"
	ActivityCanceled  ActivityStatus = "CANCELED"
	ActivityExpired   ActivityStatus = "EXPIRED"
)

// AccountActivity is one entry of the activity feed.
type AccountActivity struct {
	ActivityID       string         `json:"activityID"`
	BusinessID       string         `json:"businessID,omitempty"`
	AllocationID     string         `json:"allocationID,omitempty"`
	AccountID        string         `json:"accountID,omitempty"`
	CardID           string         `json:"cardID,omitempty"`
	NetworkMessageID string         `json:"networkMessageID,omitempty"`
	Type             ActivityType   `json:"type"`
	Status           ActivityStatus `json:"status"`
	Amount           Amount         `json:"amount"`
	MerchantName     string         `json:"merchantName,omitempty"`
	HoldID           string         `json:"holdID,omitempty"`
	AdjustmentID     string         `json:"adjustmentID,omitempty"`
	ActivityTime     time.Time      `json:"activityTime"`
	HideAfter        *time.Time     `json:"hideAfter,omitempty"` // Pending entries disappear once their hold lapses
}

// ActivityTypeFor maps an adjustment type to its activity type.
func ActivityTypeFor(t AdjustmentType) ActivityType {
	switch t {
	case AdjustmentDeposit:
		return ActivityDeposit
	case AdjustmentWithdraw:
		return ActivityWithdraw
	case AdjustmentReallocate:
		return ActivityReallocate
	case AdjustmentNetworkCapture:
		return ActivityNetworkCapture
	case AdjustmentNetworkRefund:
		return ActivityNetworkRefund
	default:
		return ActivityManual
	}
}

// VisibleAt reports whether the activity is still shown in the feed at t.
func (a AccountActivity) VisibleAt(t time.Time) bool {
	return a.HideAfter == nil || a.HideAfter.After(t)
}

// ActivityCursor is the position of the last activity of a feed page.
type ActivityCursor struct {
	ActivityTime time.Time
	ActivityID   string
}

// After reports whether a comes after the cursor in newest first order.
func (c ActivityCursor) After(a AccountActivity) bool {
	if !a.ActivityTime.Equal(c.ActivityTime) {
		return a.ActivityTime.Before(c.ActivityTime)
	}
	return a.ActivityID < c.ActivityID
}

// ActivityQuery selects the visible activities of an account, newest first.
type ActivityQuery struct {
	AccountID string
	AsOf      time.Time
	After     *ActivityCursor
	Limit     int
}

// ActivityPage is one page of the activity feed. NextToken is empty on the last page.
type ActivityPage struct {
	Activities []AccountActivity `json:"activities"`
	NextToken  string            `json:"nextToken,omitempty"`
}
