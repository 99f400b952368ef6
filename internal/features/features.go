// Package features normalizes raw batch records into the ranges the scoring
// formulas expect. Clipping saturates; no record is ever dropped.
package features

import (
	"github.com/opensource-finance/creditx/internal/domain"
)

// Normalization ranges for submission and policy fields.
const (
	DebtorDaysMin = 0
	DebtorDaysMax = 180

	YearsTradingMin = 0
	YearsTradingMax = 30

	UtilizationMin = 0
	UtilizationMax = 1

	ClaimsRatioMin = 0
	ClaimsRatioMax = 5

	DaysToExpiryMin = 0
	DaysToExpiryMax = 365
)

// NormalizeSubmissions returns a copy of the batch with debtor_days clipped
// to [0,180] and years_trading clipped to [0,30].
func NormalizeSubmissions(subs []domain.Submission) []domain.Submission {
	out := make([]domain.Submission, len(subs))
	for i, s := range subs {
		s.DebtorDays = Clip(s.DebtorDays, DebtorDaysMin, DebtorDaysMax)
		s.YearsTrading = Clip(s.YearsTrading, YearsTradingMin, YearsTradingMax)
		out[i] = s
	}
	return out
}

// NormalizePolicies returns a copy of the batch with utilization_pct clipped
// to [0,1], claims_ratio_24m to [0,5], and days_to_expiry to [0,365].
func NormalizePolicies(pols []domain.Policy) []domain.Policy {
	out := make([]domain.Policy, len(pols))
	for i, p := range pols {
		p.UtilizationPct = Clip(p.UtilizationPct, UtilizationMin, UtilizationMax)
		p.ClaimsRatio24m = Clip(p.ClaimsRatio24m, ClaimsRatioMin, ClaimsRatioMax)
		p.DaysToExpiry = Clip(p.DaysToExpiry, DaysToExpiryMin, DaysToExpiryMax)
		out[i] = p
	}
	return out
}

// Clip pulls v to the nearest bound of [lo, hi].
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
