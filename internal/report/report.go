// Package report aggregates reason and adjustment frequencies across
// scoring and pricing batches.
package report

import (
	"sync"

	"github.com/opensource-finance/creditx/internal/domain"
)

// FromResults counts, per reason string, how many records in the batch
// carried it. Referral flags are workflow markers and are not counted.
func FromResults(results []domain.ScoreResult) domain.Importance {
	imp := domain.Importance{}
	for i := range results {
		for _, reason := range results[i].Reasons {
			imp[reason]++
		}
	}
	return imp
}

// FromSuggestions counts, per adjustment string, how many suggestions in
// the batch carried it.
func FromSuggestions(suggestions []domain.PriceSuggestion) domain.Importance {
	imp := domain.Importance{}
	for i := range suggestions {
		for _, adj := range suggestions[i].Adjustments {
			imp[adj]++
		}
	}
	return imp
}

// Aggregator keeps running importance totals across every batch scored
// since process start. The report worker feeds it from bus events; the
// reports endpoint reads snapshots.
type Aggregator struct {
	mu      sync.RWMutex
	counts  domain.Importance
	batches int64
	records int64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: domain.Importance{}}
}

// Merge folds one batch's importance map into the running totals.
func (a *Aggregator) Merge(imp domain.Importance, records int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k, v := range imp {
		a.counts[k] += v
	}
	a.batches++
	a.records += int64(records)
}

// Totals is a point-in-time copy of the running importance report.
type Totals struct {
	Batches int64             `json:"batches"`
	Records int64             `json:"records"`
	Counts  domain.Importance `json:"counts"`
}

// Snapshot returns a copy that is safe to serialize while merges continue.
func (a *Aggregator) Snapshot() Totals {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(domain.Importance, len(a.counts))
	for k, v := range a.counts {
		counts[k] = v
	}
	return Totals{
		Batches: a.batches,
		Records: a.records,
		Counts:  counts,
	}
}
