package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/creditx/internal/config"
	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/ingest"
	"github.com/opensource-finance/creditx/internal/pricing"
	"github.com/opensource-finance/creditx/internal/report"
	"github.com/opensource-finance/creditx/internal/scoring"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	store      *config.Store
	engine     *scoring.Engine
	pricer     *pricing.Pricer
	repo       domain.DocumentStore
	cache      domain.Cache
	bus        domain.EventBus
	aggregator *report.Aggregator
	info       BuildInfo
}

// NewHandler creates a new API handler.
func NewHandler(store *config.Store, engine *scoring.Engine, pricer *pricing.Pricer, repo domain.DocumentStore, cache domain.Cache, bus domain.EventBus, aggregator *report.Aggregator, info BuildInfo) *Handler {
	return &Handler{
		store:      store,
		engine:     engine,
		pricer:     pricer,
		repo:       repo,
		cache:      cache,
		bus:        bus,
		aggregator: aggregator,
		info:       info,
	}
}

// ============================================================================
// SCORING HANDLERS
// ============================================================================

// TriageUnderwriting scores a batch of submissions for underwriting triage.
func (h *Handler) TriageUnderwriting(w http.ResponseWriter, r *http.Request) {
	var batch domain.SubmissionBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	h.scoreSubmissions(w, r, batch, "/triage/underwriting")
}

// TriageUnderwritingCSV scores submissions uploaded as a CSV file.
func (h *Handler) TriageUnderwritingCSV(w http.ResponseWriter, r *http.Request) {
	subs, ok := h.submissionsFromUpload(w, r)
	if !ok {
		return
	}

	h.scoreSubmissions(w, r, domain.SubmissionBatch{Submissions: subs}, "/triage/underwriting/csv")
}

// RenewalPriority ranks a batch of policies for renewal attention.
func (h *Handler) RenewalPriority(w http.ResponseWriter, r *http.Request) {
	var batch domain.PolicyBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	h.scorePolicies(w, r, batch, "/renewals/priority")
}

// RenewalPriorityCSV ranks policies uploaded as a CSV file.
func (h *Handler) RenewalPriorityCSV(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "multipart form must include a file field",
		})
		return
	}
	defer file.Close()

	policies, err := ingest.ParsePoliciesCSV(header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	h.scorePolicies(w, r, domain.PolicyBatch{Policies: policies}, "/renewals/priority/csv")
}

// PricingSuggest prices a batch of submissions.
func (h *Handler) PricingSuggest(w http.ResponseWriter, r *http.Request) {
	var batch domain.SubmissionBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	h.priceSubmissions(w, r, batch, "/pricing/suggest")
}

// PricingSuggestCSV prices submissions uploaded as a CSV file.
func (h *Handler) PricingSuggestCSV(w http.ResponseWriter, r *http.Request) {
	subs, ok := h.submissionsFromUpload(w, r)
	if !ok {
		return
	}

	h.priceSubmissions(w, r, domain.SubmissionBatch{Submissions: subs}, "/pricing/suggest/csv")
}

func (h *Handler) scoreSubmissions(w http.ResponseWriter, r *http.Request, batch domain.SubmissionBatch, endpoint string) {
	if err := batch.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// One document pointer for the whole batch, so a concurrent reload
	// cannot mix generations inside a response.
	cfg := h.store.Current()
	results := h.engine.TriageScores(r.Context(), cfg, batch.Submissions)
	importance := report.FromResults(results)

	h.publishBatchScored(r.Context(), endpoint, len(results), cfg.Version, importance)

	writeJSON(w, http.StatusOK, domain.ScoreResponse{
		Scores:            results,
		WeightsVersion:    cfg.Version,
		FeatureImportance: importance,
	})
}

func (h *Handler) scorePolicies(w http.ResponseWriter, r *http.Request, batch domain.PolicyBatch, endpoint string) {
	if err := batch.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cfg := h.store.Current()
	results := h.engine.RenewalPriorities(r.Context(), cfg, batch.Policies)
	importance := report.FromResults(results)

	h.publishBatchScored(r.Context(), endpoint, len(results), cfg.Version, importance)

	writeJSON(w, http.StatusOK, domain.ScoreResponse{
		Scores:            results,
		WeightsVersion:    cfg.Version,
		FeatureImportance: importance,
	})
}

func (h *Handler) priceSubmissions(w http.ResponseWriter, r *http.Request, batch domain.SubmissionBatch, endpoint string) {
	if err := batch.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cfg := h.store.Current()
	suggestions := h.pricer.SuggestBatch(r.Context(), cfg, batch.Submissions)
	importance := report.FromSuggestions(suggestions)

	h.publishBatchScored(r.Context(), endpoint, len(suggestions), cfg.Version, importance)

	writeJSON(w, http.StatusOK, domain.PricingResponse{
		Suggestions:       suggestions,
		WeightsVersion:    cfg.Version,
		FeatureImportance: importance,
	})
}

func (h *Handler) submissionsFromUpload(w http.ResponseWriter, r *http.Request) ([]domain.Submission, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "multipart form must include a file field",
		})
		return nil, false
	}
	defer file.Close()

	subs, err := ingest.ParseSubmissionsCSV(header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}

	return subs, true
}

// ============================================================================
// POLICY HANDLERS
// ============================================================================

// PolicyCheck validates a requested coverage fraction against sector limits.
func (h *Handler) PolicyCheck(w http.ResponseWriter, r *http.Request) {
	var req domain.PolicyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !req.Sector.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("sector %q is not one of %v", req.Sector, domain.Sectors),
		})
		return
	}
	if req.RequestedCovPct < 0 || req.RequestedCovPct > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("requested_cov_pct must be between 0 and 1, got %g", req.RequestedCovPct),
		})
		return
	}

	cfg := h.store.Current()
	limit := cfg.CoverageLimit(req.Sector)

	if req.RequestedCovPct > limit {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Requested coverage %.2f exceeds limit %.2f for sector %s.",
				req.RequestedCovPct, limit, req.Sector),
		})
		return
	}

	writeJSON(w, http.StatusOK, domain.PolicyCheckResponse{
		Allowed:          true,
		Sector:           req.Sector,
		RequestedCovPct:  req.RequestedCovPct,
		MaxAllowedCovPct: limit,
	})
}

// ============================================================================
// CONFIG HANDLERS
// ============================================================================

// ConfigCurrent returns the active weights document.
func (h *Handler) ConfigCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Current())
}

// ConfigVersions lists the weights documents held in the document store.
func (h *Handler) ConfigVersions(w http.ResponseWriter, r *http.Request) {
	docs := []*domain.WeightsDocument{}

	if h.repo != nil {
		listed, err := h.repo.ListDocuments(r.Context())
		if err != nil {
			slog.Error("failed to list weights documents", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to list weights documents",
			})
			return
		}
		if listed != nil {
			docs = listed
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": docs,
		"count":    len(docs),
	})
}

// ReloadWeights re-reads the weights source and swaps the new document in.
func (h *Handler) ReloadWeights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := h.store.Reload(ctx)
	if err != nil {
		slog.Error("weights reload failed", "error", err)
		h.publishConfigEvent(ctx, domain.TopicConfigReloadFailed, h.store.Version(), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.applyConfig(ctx, cfg)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "reloaded",
		"weights_version": cfg.Version,
	})
}

// UploadWeights installs a raw weights document posted in the request body.
func (h *Handler) UploadWeights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return
	}
	if len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must contain a weights document",
		})
		return
	}

	cfg, err := h.store.Install(ctx, raw)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidDocument) || errors.Is(err, config.ErrReadOnlySource) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	h.applyConfig(ctx, cfg)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "installed",
		"weights_version": cfg.Version,
	})
}

// applyConfig swaps the new document into the scoring engine, clears
// memoized prices, and announces the change on the bus.
func (h *Handler) applyConfig(ctx context.Context, cfg *domain.WeightsConfig) {
	if err := h.engine.Reload(cfg); err != nil {
		slog.Error("referral rule reload failed", "weights_version", cfg.Version, "error", err)
	}

	if h.cache != nil {
		if err := h.cache.Flush(ctx); err != nil {
			slog.Warn("cache flush after weights change failed", "error", err)
		}
	}

	h.publishConfigEvent(ctx, domain.TopicConfigReloaded, cfg.Version, nil)
}

// ============================================================================
// REPORT HANDLERS
// ============================================================================

// ReportImportance returns the running feature importance totals.
func (h *Handler) ReportImportance(w http.ResponseWriter, r *http.Request) {
	if h.aggregator == nil {
		writeJSON(w, http.StatusOK, report.Totals{Counts: domain.Importance{}})
		return
	}

	writeJSON(w, http.StatusOK, h.aggregator.Snapshot())
}

// ============================================================================
// SYSTEM HANDLERS
// ============================================================================

// Root returns the API banner.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "CreditX API",
		"version": h.info.Version,
	})
}

// Health returns the health of the server and its backing services.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check document store health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check event bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    status,
		"service":   "creditx",
		"version":   h.info.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Version returns version and build information.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":         "creditx",
		"version":         h.info.Version,
		"commit":          h.info.Commit,
		"build_date":      h.info.BuildDate,
		"weights_version": h.store.Version(),
	})
}

// ============================================================================
// EVENT PUBLISHING
// ============================================================================

func (h *Handler) publishBatchScored(ctx context.Context, endpoint string, records int, version string, importance domain.Importance) {
	if h.bus == nil {
		return
	}

	event := domain.BatchScoredEvent{
		Endpoint:       endpoint,
		Records:        records,
		WeightsVersion: version,
		Importance:     importance,
		Timestamp:      time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal batch scored event", "error", err)
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicBatchScored, payload); err != nil {
		slog.Error("failed to publish batch scored event", "topic", domain.TopicBatchScored, "error", err)
	}
}

func (h *Handler) publishConfigEvent(ctx context.Context, topic, version string, cause error) {
	if h.bus == nil {
		return
	}

	event := domain.ConfigReloadedEvent{
		Version:   version,
		Source:    h.store.Describe(),
		Timestamp: time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal config event", "error", err)
		return
	}

	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish config event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
