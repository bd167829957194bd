package domain

import "time"

// CorrectionJobStatus is the state of a scheduled negative balance correction.
type CorrectionJobStatus string

const (
	JobScheduled CorrectionJobStatus = "SCHEDULED"
	JobRunning   CorrectionJobStatus = "RUNNING"
	JobFailed    CorrectionJobStatus = "FAILED"
)

// IsPending reports whether the job still blocks scheduling another one for the business.
func (s CorrectionJobStatus) IsPending() bool {
	return s == JobScheduled || s == JobRunning
}

// CorrectionJob is keyed by business id; at most one is pending per business.
type CorrectionJob struct {
	BusinessID string              `json:"businessID"`
	Status     CorrectionJobStatus `json:"status"`
	RunAt      time.Time           `json:"runAt"`
	Attempts   int                 `json:"attempts"`
	LastError  string              `json:"lastError,omitempty"`
	AuditFields
}

// FundsTransfer moves Amount from one allocation to another inside a business.
type FundsTransfer struct {
	FromAllocationID string `json:"fromAllocationID"`
	ToAllocationID   string `json:"toAllocationID"`
	Amount           Amount `json:"amount"`
}

// CorrectionResult summarizes one negative balance correction run.
type CorrectionResult struct {
	BusinessID string          `json:"businessID"`
	Transfers  []FundsTransfer `json:"transfers"`
	Suspended  bool            `json:"suspended"`
	// Remaining is the negative balance still uncovered after donors were exhausted.
	Remaining Amount `json:"remaining"`
}

// CorrectionRunSummary summarizes a RunDueCorrections invocation.
type CorrectionRunSummary struct {
	Reviewed  int `json:"reviewed" yaml:"reviewed"`
	Claimed   int `json:"claimed" yaml:"claimed"`
	Corrected int `json:"corrected" yaml:"corrected"`
	Failed    int `json:"failed" yaml:"failed"`
	// Released counts claimed jobs put back to SCHEDULED because the run was cancelled.
	Released int `json:"released" yaml:"released"`
}

// BusinessExpiry is the per business part of a sweep summary.
type BusinessExpiry struct {
	Count  int    `json:"count" yaml:"count"`
	Amount Amount `json:"amount" yaml:"amount"`
}

// SweepSummary is the result of a hold expiry sweep.
type SweepSummary struct {
	Expired    int                       `json:"expired" yaml:"expired"`
	Failed     int                       `json:"failed" yaml:"failed"`
	ByBusiness map[string]BusinessExpiry `json:"byBusiness" yaml:"byBusiness"`
}
