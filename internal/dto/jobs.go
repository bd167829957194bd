package dto

import (
	"maps"
	"slices"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// RunJobRequest triggers a maintenance job. AsOf defaults to the current time.
type RunJobRequest struct {
	AsOf *time.Time `json:"asOf"`
}

func (r RunJobRequest) Time(now time.Time) time.Time {
	if r.AsOf != nil {
		return *r.AsOf
	}
	return now
}

// BusinessExpiryResponse is the per business part of a sweep response.
type BusinessExpiryResponse struct {
	BusinessID string        `json:"businessID"`
	Count      int           `json:"count"`
	Amount     domain.Amount `json:"amount"`
}

// HoldSweepResponse summarizes a hold expiry sweep.
type HoldSweepResponse struct {
	Expired    int                      `json:"expired"`
	Failed     int                      `json:"failed"`
	ByBusiness []BusinessExpiryResponse `json:"byBusiness"`
}

// ToHoldSweepResponse flattens the per business map into a list ordered by business id.
func ToHoldSweepResponse(s *domain.SweepSummary) HoldSweepResponse {
	res := HoldSweepResponse{Expired: s.Expired, Failed: s.Failed, ByBusiness: []BusinessExpiryResponse{}}
	for _, id := range slices.Sorted(maps.Keys(s.ByBusiness)) {
		e := s.ByBusiness[id]
		res.ByBusiness = append(res.ByBusiness, BusinessExpiryResponse{BusinessID: id, Count: e.Count, Amount: e.Amount})
	}
	return res
}

// CorrectionRunResponse summarizes a correction job run.
type CorrectionRunResponse struct {
	Reviewed  int `json:"reviewed"`
	Claimed   int `json:"claimed"`
	Corrected int `json:"corrected"`
	Failed    int `json:"failed"`
	Released  int `json:"released"`
}

func ToCorrectionRunResponse(s *domain.CorrectionRunSummary) CorrectionRunResponse {
	return CorrectionRunResponse{
		Reviewed:  s.Reviewed,
		Claimed:   s.Claimed,
		Corrected: s.Corrected,
		Failed:    s.Failed,
		Released:  s.Released,
	}
}

// CorrectionResponse is the result of correcting one business.
type CorrectionResponse struct {
	BusinessID string                 `json:"businessID"`
	Transfers  []domain.FundsTransfer `json:"transfers"`
	Suspended  bool                   `json:"suspended"`
	Remaining  domain.Amount          `json:"remaining"`
}

func ToCorrectionResponse(r *domain.CorrectionResult) CorrectionResponse {
	return CorrectionResponse{
		BusinessID: r.BusinessID,
		Transfers:  nonNil(r.Transfers),
		Suspended:  r.Suspended,
		Remaining:  r.Remaining,
	}
}
