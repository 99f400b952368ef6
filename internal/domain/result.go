package domain

// ScoreResult is one scored record from a triage or renewal batch. Reasons
// keep evaluation order and are never deduplicated; Flags carry referral
// rule hits for submissions and stay empty for policies.
type ScoreResult struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
	Flags   []string `json:"flags,omitempty"`
}

// PriceSuggestion is the pricing outcome for one submission.
type PriceSuggestion struct {
	ID               string   `json:"id"`
	BandCode         string   `json:"band_code"`
	BandLabel        string   `json:"band_label"`
	BandDescription  string   `json:"band_description"`
	SuggestedRateBps int      `json:"suggested_rate_bps"`
	BaseRateBps      int      `json:"base_rate_bps"`
	Adjustments      []string `json:"adjustments"`
}

// Importance counts, per distinct reason or adjustment string, how many
// records in a batch carried it.
type Importance map[string]int

// ScoreResponse is the API envelope for triage and renewal batches.
type ScoreResponse struct {
	Scores            []ScoreResult `json:"scores"`
	WeightsVersion    string        `json:"weights_version"`
	FeatureImportance Importance    `json:"feature_importance"`
}

// PricingResponse is the API envelope for pricing batches.
type PricingResponse struct {
	Suggestions       []PriceSuggestion `json:"suggestions"`
	WeightsVersion    string            `json:"weights_version"`
	FeatureImportance Importance        `json:"feature_importance"`
}

// PolicyCheckRequest asks whether a coverage fraction is writable for a sector.
type PolicyCheckRequest struct {
	Sector          Sector  `json:"sector"`
	RequestedCovPct float64 `json:"requested_cov_pct"`
}

// PolicyCheckResponse reports an allowed coverage check.
type PolicyCheckResponse struct {
	Allowed          bool    `json:"allowed"`
	Sector           Sector  `json:"sector"`
	RequestedCovPct  float64 `json:"requested_cov_pct"`
	MaxAllowedCovPct float64 `json:"max_allowed_cov_pct"`
}
