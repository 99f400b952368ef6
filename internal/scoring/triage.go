package scoring

import (
	"context"

	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/features"
)

// TriageScores computes the underwriting triage score for every submission
// in the batch. Exposure normalization is batch-relative: min and max are
// taken over this batch only, so the same submission can score differently
// inside a different batch. Records keep their input order.
func (e *Engine) TriageScores(ctx context.Context, cfg *domain.WeightsConfig, batch []domain.Submission) []domain.ScoreResult {
	subs := features.NormalizeSubmissions(batch)
	w := cfg.TriageWeights
	t := cfg.Thresholds

	lo, hi := exposureBounds(subs)
	spread := hi - lo
	if spread <= 0 {
		spread = 1
	}

	referrals := e.referralsFor(cfg)

	results := make([]domain.ScoreResult, 0, len(subs))
	for i := range subs {
		sub := &subs[i]

		financials := 0.0
		if sub.FinancialsAttached {
			financials = 1
		}
		judgements := 0.0
		if sub.HasJudgements {
			judgements = 1
		}

		score := w.ExposureLimit*((sub.ExposureLimit-lo)/spread) +
			w.DebtorDays*(1-sub.DebtorDays/t.DebtorDaysNormalization) +
			w.FinancialsAttached*financials +
			w.YearsTrading*(sub.YearsTrading/t.YearsTradingNormalization) +
			w.BrokerHitRate*sub.BrokerHitRate +
			w.HasJudgements*(1-judgements)

		results = append(results, domain.ScoreResult{
			ID:      sub.SubmissionID,
			Score:   features.Clip(score, 0, 1),
			Reasons: triageReasons(sub),
			// Referral rules see the submission as submitted, before clipping
			Flags: e.referralFlags(referrals, &batch[i]),
		})
	}

	return results
}

// triageReasons applies the fixed reason checks in order. Any subset may
// apply; the two range checks are mutually exclusive within their factor.
func triageReasons(sub *domain.Submission) []string {
	reasons := []string{}

	if sub.FinancialsAttached {
		reasons = append(reasons, "Financial statements provided")
	}

	if sub.BrokerHitRate >= 0.5 {
		reasons = append(reasons, "Good broker quality track record")
	}

	if sub.DebtorDays <= 60 {
		reasons = append(reasons, "Short debtor days")
	} else if sub.DebtorDays > 120 {
		reasons = append(reasons, "Long debtor days warning")
	}

	if sub.HasJudgements {
		reasons = append(reasons, "Outstanding judgements warning")
	}

	if sub.YearsTrading < 2 {
		reasons = append(reasons, "Limited trading history")
	} else if sub.YearsTrading >= 10 {
		reasons = append(reasons, "Established trading history")
	}

	return reasons
}

func exposureBounds(subs []domain.Submission) (float64, float64) {
	if len(subs) == 0 {
		return 0, 0
	}
	lo, hi := subs[0].ExposureLimit, subs[0].ExposureLimit
	for _, sub := range subs[1:] {
		if sub.ExposureLimit < lo {
			lo = sub.ExposureLimit
		}
		if sub.ExposureLimit > hi {
			hi = sub.ExposureLimit
		}
	}
	return lo, hi
}
