// Package pricing computes suggested premium rates and risk bands.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/features"
)

// SectorBaseRates is the fixed per-sector starting rate in basis points.
var SectorBaseRates = map[domain.Sector]int{
	domain.SectorRetail:        220,
	domain.SectorManufacturing: 260,
	domain.SectorLogistics:     240,
	domain.SectorAgri:          280,
	domain.SectorServices:      200,
	domain.SectorOther:         250,
}

// Band is a discrete risk category derived from a suggested rate.
type Band struct {
	Code        string
	Label       string
	Description string
}

// Bands lists the risk bands from lowest to highest rate.
var Bands = []Band{
	{Code: "A", Label: "<=200 bps", Description: "Lowest risk submissions"},
	{Code: "B", Label: "201-250 bps", Description: "Low risk submissions"},
	{Code: "C", Label: "251-300 bps", Description: "Moderate risk submissions"},
	{Code: "D", Label: "301-360 bps", Description: "Elevated risk submissions"},
	{Code: "E", Label: ">360 bps", Description: "Highest risk submissions"},
}

// BandFor maps a final rate to its risk band.
func BandFor(rateBps int) Band {
	switch {
	case rateBps <= 200:
		return Bands[0]
	case rateBps <= 250:
		return Bands[1]
	case rateBps <= 300:
		return Bands[2]
	case rateBps <= 360:
		return Bands[3]
	default:
		return Bands[4]
	}
}

// Pricer computes rate suggestions for submissions. Identical feature tuples
// always price identically under one document version, so results are
// memoized through the cache with the version in the key; an entry written
// under an old document can never serve a newer one.
type Pricer struct {
	cache domain.Cache
	ttl   time.Duration
}

// New creates a Pricer. A nil cache disables memoization.
func New(cache domain.Cache, ttl time.Duration) *Pricer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Pricer{cache: cache, ttl: ttl}
}

// memoEntry is the cached portion of a suggestion: everything except the
// submission id, which varies across identical feature tuples.
type memoEntry struct {
	Rate        int      `json:"rate"`
	Adjustments []string `json:"adjustments"`
}

// SuggestBatch normalizes and prices every submission in the batch, keeping
// input order.
func (p *Pricer) SuggestBatch(ctx context.Context, cfg *domain.WeightsConfig, batch []domain.Submission) []domain.PriceSuggestion {
	subs := features.NormalizeSubmissions(batch)

	results := make([]domain.PriceSuggestion, 0, len(subs))
	for i := range subs {
		results = append(results, p.suggest(ctx, cfg, &subs[i]))
	}
	return results
}

// suggest prices one normalized submission, consulting the memo cache first.
// Cache failures fall back to computing; they never fail the request.
func (p *Pricer) suggest(ctx context.Context, cfg *domain.WeightsConfig, sub *domain.Submission) domain.PriceSuggestion {
	key := memoKey(cfg.Version, sub)

	if p.cache != nil {
		if raw, err := p.cache.Get(ctx, key); err == nil && raw != nil {
			var entry memoEntry
			if err := json.Unmarshal(raw, &entry); err == nil {
				return suggestionFor(sub, entry)
			}
		}
	}

	rate, adjustments := SuggestRate(cfg, sub)
	entry := memoEntry{Rate: rate, Adjustments: adjustments}

	if p.cache != nil {
		if raw, err := json.Marshal(entry); err == nil {
			_ = p.cache.Set(ctx, key, raw, p.ttl)
		}
	}

	return suggestionFor(sub, entry)
}

func suggestionFor(sub *domain.Submission, entry memoEntry) domain.PriceSuggestion {
	band := BandFor(entry.Rate)
	return domain.PriceSuggestion{
		ID:               sub.SubmissionID,
		BandCode:         band.Code,
		BandLabel:        band.Label,
		BandDescription:  band.Description,
		SuggestedRateBps: entry.Rate,
		BaseRateBps:      SectorBaseRates[sub.Sector],
		Adjustments:      entry.Adjustments,
	}
}

// SuggestRate applies the configured conditional deltas to the sector base
// rate in fixed order, then clamps into the configured bounds. The clip note
// is appended whenever the final rate sits on a bound.
func SuggestRate(cfg *domain.WeightsConfig, sub *domain.Submission) (int, []string) {
	adj := cfg.PricingAdjustments
	bounds := cfg.PricingBounds
	t := cfg.Thresholds

	rate := SectorBaseRates[sub.Sector]
	adjustments := []string{}

	if sub.FinancialsAttached {
		rate += adj.FinancialsAttached
		adjustments = append(adjustments, fmt.Sprintf("Financials attached (%+d bps)", adj.FinancialsAttached))
	}

	if sub.BrokerHitRate >= t.BrokerHitRateMin {
		rate += adj.BrokerHitRate
		adjustments = append(adjustments, fmt.Sprintf("Good broker track record (%+d bps)", adj.BrokerHitRate))
	}

	if sub.DebtorDays > t.DebtorDaysMax {
		rate += adj.DebtorDays
		adjustments = append(adjustments, fmt.Sprintf("High debtor days (%+d bps)", adj.DebtorDays))
	}

	if sub.HasJudgements {
		rate += adj.HasJudgements
		adjustments = append(adjustments, fmt.Sprintf("Outstanding judgements (%+d bps)", adj.HasJudgements))
	}

	if sub.RequestedCovPct > t.HighCoverageMin {
		rate += adj.HighCoverage
		adjustments = append(adjustments, fmt.Sprintf("High coverage request (%+d bps)", adj.HighCoverage))
	}

	if sub.YearsTrading < t.LimitedTradingMax {
		rate += adj.LimitedTrading
		adjustments = append(adjustments, fmt.Sprintf("Limited trading history (%+d bps)", adj.LimitedTrading))
	}

	if rate < bounds.MinRate {
		rate = bounds.MinRate
	}
	if rate > bounds.MaxRate {
		rate = bounds.MaxRate
	}

	if rate == bounds.MinRate {
		adjustments = append(adjustments, fmt.Sprintf("Rate clipped to minimum (%d bps)", bounds.MinRate))
	} else if rate == bounds.MaxRate {
		adjustments = append(adjustments, fmt.Sprintf("Rate clipped to maximum (%d bps)", bounds.MaxRate))
	}

	return rate, adjustments
}

// memoKey builds the cache key from the document version and the seven
// fields that determine the rate.
func memoKey(version string, sub *domain.Submission) string {
	return fmt.Sprintf("pricing:%s:%s:%t:%g:%g:%t:%g:%g",
		version,
		sub.Sector,
		sub.FinancialsAttached,
		sub.BrokerHitRate,
		sub.DebtorDays,
		sub.HasJudgements,
		sub.RequestedCovPct,
		sub.YearsTrading,
	)
}
