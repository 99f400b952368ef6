package domain

import (
	"fmt"
)

// Sector is the closed set of industry sectors the service prices.
type Sector string

const (
	SectorRetail        Sector = "Retail"
	SectorManufacturing Sector = "Manufacturing"
	SectorLogistics     Sector = "Logistics"
	SectorAgri          Sector = "Agri"
	SectorServices      Sector = "Services"
	SectorOther         Sector = "Other"
)

// Sectors lists every valid sector in declaration order.
var Sectors = []Sector{
	SectorRetail,
	SectorManufacturing,
	SectorLogistics,
	SectorAgri,
	SectorServices,
	SectorOther,
}

// Valid reports whether s is one of the known sectors.
func (s Sector) Valid() bool {
	switch s {
	case SectorRetail, SectorManufacturing, SectorLogistics, SectorAgri, SectorServices, SectorOther:
		return true
	}
	return false
}

// Submission is one credit-insurance submission awaiting underwriting review.
// Immutable once ingested; it lives only for the duration of a scoring request.
type Submission struct {
	SubmissionID       string  `json:"submission_id"`
	Broker             string  `json:"broker"`
	Sector             Sector  `json:"sector"`
	ExposureLimit      float64 `json:"exposure_limit"`
	DebtorDays         float64 `json:"debtor_days"`
	FinancialsAttached bool    `json:"financials_attached"`
	YearsTrading       float64 `json:"years_trading"`
	BrokerHitRate      float64 `json:"broker_hit_rate"`
	RequestedCovPct    float64 `json:"requested_cov_pct"`
	HasJudgements      bool    `json:"has_judgements"`
}

// Validate checks the field constraints enforced at the API boundary.
func (s *Submission) Validate() error {
	if s.SubmissionID == "" {
		return fmt.Errorf("submission_id is required")
	}
	if s.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if !s.Sector.Valid() {
		return fmt.Errorf("sector %q is not one of %v", s.Sector, Sectors)
	}
	if s.ExposureLimit < 0 {
		return fmt.Errorf("exposure_limit must be >= 0, got %v", s.ExposureLimit)
	}
	if s.DebtorDays < 0 {
		return fmt.Errorf("debtor_days must be >= 0, got %v", s.DebtorDays)
	}
	if s.YearsTrading < 0 {
		return fmt.Errorf("years_trading must be >= 0, got %v", s.YearsTrading)
	}
	if s.BrokerHitRate < 0 || s.BrokerHitRate > 1 {
		return fmt.Errorf("broker_hit_rate must be in [0,1], got %v", s.BrokerHitRate)
	}
	if s.RequestedCovPct < 0 || s.RequestedCovPct > 1 {
		return fmt.Errorf("requested_cov_pct must be in [0,1], got %v", s.RequestedCovPct)
	}
	return nil
}

// Policy is one in-force credit-insurance policy approaching renewal.
type Policy struct {
	PolicyID           string  `json:"policy_id"`
	Sector             Sector  `json:"sector"`
	CurrentPremium     float64 `json:"current_premium"`
	Limit              float64 `json:"limit"`
	UtilizationPct     float64 `json:"utilization_pct"`
	ClaimsLast24mCnt   int     `json:"claims_last_24m_cnt"`
	ClaimsRatio24m     float64 `json:"claims_ratio_24m"`
	DaysToExpiry       float64 `json:"days_to_expiry"`
	RequestedChangePct float64 `json:"requested_change_pct"`
	Broker             string  `json:"broker"`
}

// Validate checks the field constraints enforced at the API boundary.
func (p *Policy) Validate() error {
	if p.PolicyID == "" {
		return fmt.Errorf("policy_id is required")
	}
	if !p.Sector.Valid() {
		return fmt.Errorf("sector %q is not one of %v", p.Sector, Sectors)
	}
	if p.CurrentPremium < 0 {
		return fmt.Errorf("current_premium must be >= 0, got %v", p.CurrentPremium)
	}
	if p.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %v", p.Limit)
	}
	if p.UtilizationPct < 0 || p.UtilizationPct > 1 {
		return fmt.Errorf("utilization_pct must be in [0,1], got %v", p.UtilizationPct)
	}
	if p.ClaimsLast24mCnt < 0 {
		return fmt.Errorf("claims_last_24m_cnt must be >= 0, got %v", p.ClaimsLast24mCnt)
	}
	if p.ClaimsRatio24m < 0 {
		return fmt.Errorf("claims_ratio_24m must be >= 0, got %v", p.ClaimsRatio24m)
	}
	if p.DaysToExpiry < 0 {
		return fmt.Errorf("days_to_expiry must be >= 0, got %v", p.DaysToExpiry)
	}
	if p.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	return nil
}

// SubmissionBatch is the structured payload for triage and pricing requests.
type SubmissionBatch struct {
	Submissions []Submission `json:"submissions"`
}

// Validate rejects the batch on the first invalid record, naming its index.
func (b *SubmissionBatch) Validate() error {
	if len(b.Submissions) == 0 {
		return fmt.Errorf("submissions must contain at least one record")
	}
	for i := range b.Submissions {
		if err := b.Submissions[i].Validate(); err != nil {
			return fmt.Errorf("submissions[%d]: %w", i, err)
		}
	}
	return nil
}

// PolicyBatch is the structured payload for renewal priority requests.
type PolicyBatch struct {
	Policies []Policy `json:"policies"`
}

// Validate rejects the batch on the first invalid record, naming its index.
func (b *PolicyBatch) Validate() error {
	if len(b.Policies) == 0 {
		return fmt.Errorf("policies must contain at least one record")
	}
	for i := range b.Policies {
		if err := b.Policies[i].Validate(); err != nil {
			return fmt.Errorf("policies[%d]: %w", i, err)
		}
	}
	return nil
}
