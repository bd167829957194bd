package domain

import "time"

// AuditFields holds standard timestamps for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Currency is an ISO 4217 currency code.
type Currency string

const (
	USD Currency = "USD"
)
