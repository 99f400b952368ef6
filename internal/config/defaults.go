package config

import "github.com/opensource-finance/creditx/internal/domain"

// DefaultWeights returns the built-in weights document. It is used to seed
// an empty document store and as the fallback when no weights file exists.
// The values mirror the shipped weights.yaml.
func DefaultWeights() *domain.WeightsConfig {
	return &domain.WeightsConfig{
		Version: "1.0.0",
		TriageWeights: domain.TriageWeights{
			ExposureLimit:      0.25,
			DebtorDays:         0.20,
			FinancialsAttached: 0.20,
			YearsTrading:       0.15,
			BrokerHitRate:      0.15,
			HasJudgements:      0.05,
		},
		RenewalsWeights: domain.RenewalsWeights{
			DaysToExpiry:       0.40,
			UtilizationPct:     0.30,
			ClaimsRatio24m:     0.20,
			RequestedChangePct: 0.10,
		},
		PricingAdjustments: domain.PricingAdjustments{
			FinancialsAttached: -10,
			BrokerHitRate:      -15,
			DebtorDays:         25,
			HasJudgements:      60,
			HighCoverage:       20,
			LimitedTrading:     30,
		},
		PricingBounds: domain.PricingBounds{
			MinRate: 120,
			MaxRate: 500,
		},
		Thresholds: domain.Thresholds{
			BrokerHitRateMin:          0.7,
			DebtorDaysMax:             60,
			HighCoverageMin:           0.85,
			LimitedTradingMax:         2,
			DebtorDaysNormalization:   180,
			YearsTradingNormalization: 30,
			ClaimsRatioMax:            2.0,
			ChangePctMin:              -0.5,
			ChangePctMax:              0.5,
		},
		BrokerScoreCurves: map[string]domain.BrokerScoreCurve{
			"tier_1": {Description: "Established broker, strong submission quality", AdjustmentBps: -15},
			"tier_2": {Description: "Average broker track record", AdjustmentBps: 0},
			"tier_3": {Description: "New or underperforming broker", AdjustmentBps: 20},
		},
		SectorCoverageLimits: map[string]float64{
			"Retail":        0.9,
			"Manufacturing": 0.85,
			"Logistics":     0.9,
			"Agri":          0.8,
			"Services":      0.95,
			"Other":         0.85,
			"default":       0.9,
		},
		ReferralRules: []domain.ReferralRule{
			{
				Name:       "large_exposure",
				Expression: "exposure_limit > 5000000.0",
				Flag:       "Referral: exposure above delegated authority",
			},
			{
				Name:       "agri_judgements",
				Expression: "sector == 'Agri' && has_judgements",
				Flag:       "Referral: agri risk with outstanding judgements",
			},
		},
	}
}
