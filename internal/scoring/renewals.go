package scoring

import (
	"context"

	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/features"
)

// RenewalPriorities computes the renewal priority score for every policy in
// the batch. A requested premium reduction (negative change_pct) raises the
// priority. Records keep their input order.
func (e *Engine) RenewalPriorities(ctx context.Context, cfg *domain.WeightsConfig, batch []domain.Policy) []domain.ScoreResult {
	pols := features.NormalizePolicies(batch)
	w := cfg.RenewalsWeights
	t := cfg.Thresholds

	results := make([]domain.ScoreResult, 0, len(pols))
	for i := range pols {
		pol := &pols[i]

		change := features.Clip(pol.RequestedChangePct, t.ChangePctMin, t.ChangePctMax)
		claims := features.Clip(pol.ClaimsRatio24m, 0, t.ClaimsRatioMax) / t.ClaimsRatioMax

		score := w.DaysToExpiry*(1-pol.DaysToExpiry/365) +
			w.UtilizationPct*pol.UtilizationPct +
			w.ClaimsRatio24m*claims +
			w.RequestedChangePct*(-change)

		results = append(results, domain.ScoreResult{
			ID:      pol.PolicyID,
			Score:   features.Clip(score, 0, 1),
			Reasons: renewalReasons(pol),
		})
	}

	return results
}

// renewalReasons applies the fixed reason checks in order.
func renewalReasons(pol *domain.Policy) []string {
	reasons := []string{}

	if pol.DaysToExpiry <= 30 {
		reasons = append(reasons, "Expiring within 30 days")
	} else if pol.DaysToExpiry <= 90 {
		reasons = append(reasons, "Expiring soon")
	}

	if pol.UtilizationPct >= 0.8 {
		reasons = append(reasons, "High utilization")
	} else if pol.UtilizationPct <= 0.3 {
		reasons = append(reasons, "Low utilization")
	}

	if pol.ClaimsRatio24m >= 1.5 {
		reasons = append(reasons, "Elevated loss ratio")
	} else if pol.ClaimsRatio24m <= 0.5 {
		reasons = append(reasons, "Low loss ratio")
	}

	if pol.RequestedChangePct < -0.1 {
		reasons = append(reasons, "Client requesting significant reduction")
	} else if pol.RequestedChangePct > 0.1 {
		reasons = append(reasons, "Client requesting increase")
	}

	return reasons
}
