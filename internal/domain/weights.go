package domain

import (
	"fmt"
)

// WeightsConfig is the versioned scoring and pricing configuration document.
// It is loaded from a YAML/JSON document, validated as a whole, and swapped
// into the config store atomically; evaluators capture one pointer per
// request and never observe a partially updated document.
type WeightsConfig struct {
	Version string `json:"version" yaml:"version"`

	TriageWeights   TriageWeights   `json:"triage_weights" yaml:"triage_weights"`
	RenewalsWeights RenewalsWeights `json:"renewals_weights" yaml:"renewals_weights"`

	PricingAdjustments PricingAdjustments `json:"pricing_adjustments" yaml:"pricing_adjustments"`
	PricingBounds      PricingBounds      `json:"pricing_bounds" yaml:"pricing_bounds"`

	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`

	// BrokerScoreCurves is exposed through the config snapshot for portfolio
	// tooling; the evaluators do not read it.
	BrokerScoreCurves map[string]BrokerScoreCurve `json:"broker_score_curves" yaml:"broker_score_curves"`

	// SectorCoverageLimits maps sector name to the maximum coverage fraction
	// the policy check allows. The "default" key is the fallback.
	SectorCoverageLimits map[string]float64 `json:"sector_coverage_limits" yaml:"sector_coverage_limits"`

	// ReferralRules are optional CEL predicates evaluated per submission
	// after the fixed triage reasons. Order matters for flag output.
	ReferralRules []ReferralRule `json:"referral_rules,omitempty" yaml:"referral_rules,omitempty"`
}

// TriageWeights are the linear coefficients of the triage score.
type TriageWeights struct {
	ExposureLimit      float64 `json:"exposure_limit" yaml:"exposure_limit"`
	DebtorDays         float64 `json:"debtor_days" yaml:"debtor_days"`
	FinancialsAttached float64 `json:"financials_attached" yaml:"financials_attached"`
	YearsTrading       float64 `json:"years_trading" yaml:"years_trading"`
	BrokerHitRate      float64 `json:"broker_hit_rate" yaml:"broker_hit_rate"`
	HasJudgements      float64 `json:"has_judgements" yaml:"has_judgements"`
}

// RenewalsWeights are the linear coefficients of the renewal priority score.
type RenewalsWeights struct {
	DaysToExpiry       float64 `json:"days_to_expiry" yaml:"days_to_expiry"`
	UtilizationPct     float64 `json:"utilization_pct" yaml:"utilization_pct"`
	ClaimsRatio24m     float64 `json:"claims_ratio_24m" yaml:"claims_ratio_24m"`
	RequestedChangePct float64 `json:"requested_change_pct" yaml:"requested_change_pct"`
}

// PricingAdjustments are the signed bps deltas applied on top of the sector
// base rate when their trigger condition holds.
type PricingAdjustments struct {
	FinancialsAttached int `json:"financials_attached" yaml:"financials_attached"`
	BrokerHitRate      int `json:"broker_hit_rate" yaml:"broker_hit_rate"`
	DebtorDays         int `json:"debtor_days" yaml:"debtor_days"`
	HasJudgements      int `json:"has_judgements" yaml:"has_judgements"`
	HighCoverage       int `json:"high_coverage" yaml:"high_coverage"`
	LimitedTrading     int `json:"limited_trading" yaml:"limited_trading"`
}

// PricingBounds clamp the final suggested rate.
type PricingBounds struct {
	MinRate int `json:"min_rate" yaml:"min_rate"`
	MaxRate int `json:"max_rate" yaml:"max_rate"`
}

// Thresholds are the named cutoffs used by the scoring formulas and the
// pricing trigger conditions.
type Thresholds struct {
	BrokerHitRateMin          float64 `json:"broker_hit_rate_min" yaml:"broker_hit_rate_min"`
	DebtorDaysMax             float64 `json:"debtor_days_max" yaml:"debtor_days_max"`
	HighCoverageMin           float64 `json:"high_coverage_min" yaml:"high_coverage_min"`
	LimitedTradingMax         float64 `json:"limited_trading_max" yaml:"limited_trading_max"`
	DebtorDaysNormalization   float64 `json:"debtor_days_normalization" yaml:"debtor_days_normalization"`
	YearsTradingNormalization float64 `json:"years_trading_normalization" yaml:"years_trading_normalization"`
	ClaimsRatioMax            float64 `json:"claims_ratio_max" yaml:"claims_ratio_max"`
	ChangePctMin              float64 `json:"change_pct_min" yaml:"change_pct_min"`
	ChangePctMax              float64 `json:"change_pct_max" yaml:"change_pct_max"`
}

// BrokerScoreCurve describes one broker quality tier.
type BrokerScoreCurve struct {
	Description   string `json:"description" yaml:"description"`
	AdjustmentBps int    `json:"adjustment_bps" yaml:"adjustment_bps"`
}

// ReferralRule is a configurable underwriting referral trigger. Expression
// is a CEL predicate over the submission fields; when it evaluates true the
// Flag string is attached to the triage result.
type ReferralRule struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
	Flag       string `json:"flag" yaml:"flag"`
}

// Validate checks the structural invariants of the document. Expression
// compilation is the config store's job; Validate only covers shape.
func (c *WeightsConfig) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("weights config version must be a non-empty string")
	}
	if c.PricingBounds.MinRate >= c.PricingBounds.MaxRate {
		return fmt.Errorf("pricing_bounds: min_rate %d must be below max_rate %d",
			c.PricingBounds.MinRate, c.PricingBounds.MaxRate)
	}
	if c.Thresholds.DebtorDaysNormalization <= 0 {
		return fmt.Errorf("thresholds: debtor_days_normalization must be positive")
	}
	if c.Thresholds.YearsTradingNormalization <= 0 {
		return fmt.Errorf("thresholds: years_trading_normalization must be positive")
	}
	if c.Thresholds.ClaimsRatioMax <= 0 {
		return fmt.Errorf("thresholds: claims_ratio_max must be positive")
	}
	if c.Thresholds.ChangePctMin >= c.Thresholds.ChangePctMax {
		return fmt.Errorf("thresholds: change_pct_min %v must be below change_pct_max %v",
			c.Thresholds.ChangePctMin, c.Thresholds.ChangePctMax)
	}
	for sector, limit := range c.SectorCoverageLimits {
		if limit < 0 || limit > 1 {
			return fmt.Errorf("sector_coverage_limits[%s]: limit %v must be in [0,1]", sector, limit)
		}
	}
	for i, rule := range c.ReferralRules {
		if rule.Name == "" {
			return fmt.Errorf("referral_rules[%d]: name is required", i)
		}
		if rule.Expression == "" {
			return fmt.Errorf("referral_rules[%d] (%s): expression is required", i, rule.Name)
		}
		if rule.Flag == "" {
			return fmt.Errorf("referral_rules[%d] (%s): flag is required", i, rule.Name)
		}
	}
	return nil
}

// CoverageLimit resolves the maximum allowed coverage fraction for a sector,
// falling back to the "default" entry, then to full coverage.
func (c *WeightsConfig) CoverageLimit(sector Sector) float64 {
	if limit, ok := c.SectorCoverageLimits[string(sector)]; ok {
		return limit
	}
	if limit, ok := c.SectorCoverageLimits["default"]; ok {
		return limit
	}
	return 1.0
}
