package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/creditx/internal/bus"
	"github.com/opensource-finance/creditx/internal/cache"
	"github.com/opensource-finance/creditx/internal/config"
	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/pricing"
	"github.com/opensource-finance/creditx/internal/report"
	"github.com/opensource-finance/creditx/internal/repository"
	"github.com/opensource-finance/creditx/internal/scoring"
	"github.com/opensource-finance/creditx/internal/worker"
)

const submissionsCSV = `submission_id,broker,sector,exposure_limit,debtor_days,financials_attached,years_trading,broker_hit_rate,requested_cov_pct,has_judgements
sub001,PremiumBroker,Retail,1000000.0,45.0,true,8.0,0.85,0.75,false
sub002,NewBroker,Manufacturing,500000.0,120.0,false,1.5,0.3,0.95,true`

const policiesCSV = `policy_id,sector,current_premium,limit,utilization_pct,claims_last_24m_cnt,claims_ratio_24m,days_to_expiry,requested_change_pct,broker
pol001,Retail,50000.0,1000000.0,0.8,2,0.5,30.0,-0.1,PremiumBroker
pol002,Services,25000.0,500000.0,0.3,0,0.0,180.0,0.05,NewBroker`

// createTestServer builds a server on real components: a file-backed weights
// store seeded with the default document, an in-process cache and bus, and no
// document store. Returns the weights file path so tests can rewrite it.
func createTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	raw, err := config.MarshalWeights(config.DefaultWeights())
	if err != nil {
		t.Fatalf("failed to marshal default weights: %v", err)
	}

	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("failed to write weights file: %v", err)
	}

	store, err := config.New(context.Background(), config.NewFileSource(path))
	if err != nil {
		t.Fatalf("failed to create config store: %v", err)
	}

	engine, err := scoring.NewEngine()
	if err != nil {
		t.Fatalf("failed to create scoring engine: %v", err)
	}
	if err := engine.Reload(store.Current()); err != nil {
		t.Fatalf("failed to load referral rules: %v", err)
	}

	memo := cache.NewLRUCache(1000)
	eventBus, err := bus.New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 64})
	if err != nil {
		t.Fatalf("failed to create event bus: %v", err)
	}
	t.Cleanup(func() { eventBus.Close() })

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	info := BuildInfo{Version: "test-v1", Commit: "abc1234", BuildDate: "2025-01-03"}
	server := NewServer(cfg, store, engine, pricing.New(memo, time.Hour), nil, memo, eventBus, report.NewAggregator(), info)

	return server, path
}

// createStoreBackedServer builds a server whose weights live in a SQLite
// document store, so uploads persist and /config/versions has history.
func createStoreBackedServer(t *testing.T) *Server {
	t.Helper()

	dbFile, err := os.CreateTemp("", "creditx-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: dbFile.Name(),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store, err := config.New(context.Background(), config.NewStoreSource(repo, ""))
	if err != nil {
		t.Fatalf("failed to create config store: %v", err)
	}

	engine, err := scoring.NewEngine()
	if err != nil {
		t.Fatalf("failed to create scoring engine: %v", err)
	}
	if err := engine.Reload(store.Current()); err != nil {
		t.Fatalf("failed to load referral rules: %v", err)
	}

	memo := cache.NewLRUCache(1000)
	eventBus, err := bus.New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 64})
	if err != nil {
		t.Fatalf("failed to create event bus: %v", err)
	}
	t.Cleanup(func() { eventBus.Close() })

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	info := BuildInfo{Version: "test-v1", Commit: "abc1234", BuildDate: "2025-01-03"}

	return NewServer(cfg, store, engine, pricing.New(memo, time.Hour), repo, memo, eventBus, report.NewAggregator(), info)
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func uploadCSV(t *testing.T, server *Server, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	return resp["error"]
}

func validSubmission(id string) domain.Submission {
	return domain.Submission{
		SubmissionID:       id,
		Broker:             "PremiumBroker",
		Sector:             domain.SectorRetail,
		ExposureLimit:      1000000,
		DebtorDays:         45,
		FinancialsAttached: true,
		YearsTrading:       8,
		BrokerHitRate:      0.85,
		RequestedCovPct:    0.75,
		HasJudgements:      false,
	}
}

func validPolicy(id string) domain.Policy {
	return domain.Policy{
		PolicyID:         id,
		Sector:           domain.SectorRetail,
		CurrentPremium:   50000,
		Limit:            1000000,
		UtilizationPct:   0.8,
		ClaimsLast24mCnt: 2,
		ClaimsRatio24m:   0.5,
		DaysToExpiry:     30,
		Broker:           "PremiumBroker",
	}
}

func TestTriageEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("SuccessfulBatch", func(t *testing.T) {
		batch := domain.SubmissionBatch{
			Submissions: []domain.Submission{validSubmission("sub001"), validSubmission("sub002")},
		}

		rr := postJSON(t, server, "/triage/underwriting", batch)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(resp.Scores) != 2 {
			t.Fatalf("expected 2 scores, got %d", len(resp.Scores))
		}
		if resp.Scores[0].ID != "sub001" || resp.Scores[1].ID != "sub002" {
			t.Errorf("scores out of order: %s, %s", resp.Scores[0].ID, resp.Scores[1].ID)
		}
		for _, s := range resp.Scores {
			if s.Score < 0 || s.Score > 1 {
				t.Errorf("score for %s out of range: %v", s.ID, s.Score)
			}
			if len(s.Reasons) == 0 {
				t.Errorf("expected reasons for %s", s.ID)
			}
		}
		if resp.WeightsVersion != "1.0.0" {
			t.Errorf("expected weights_version 1.0.0, got %s", resp.WeightsVersion)
		}
		if resp.FeatureImportance == nil {
			t.Error("expected feature_importance in response")
		}
	})

	t.Run("ReferralFlagRaised", func(t *testing.T) {
		sub := validSubmission("sub_large")
		sub.ExposureLimit = 6000000

		rr := postJSON(t, server, "/triage/underwriting", domain.SubmissionBatch{
			Submissions: []domain.Submission{sub},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		found := false
		for _, flag := range resp.Scores[0].Flags {
			if flag == "Referral: exposure above delegated authority" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected referral flag for large exposure, got %v", resp.Scores[0].Flags)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/triage/underwriting", strings.NewReader("not-json"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
		if msg := decodeError(t, rr); msg != "invalid JSON request body" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})

	t.Run("FirstBadRecordNamed", func(t *testing.T) {
		bad := validSubmission("sub_bad")
		bad.Sector = "Telecom"

		rr := postJSON(t, server, "/triage/underwriting", domain.SubmissionBatch{
			Submissions: []domain.Submission{validSubmission("sub_ok"), bad},
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		if msg := decodeError(t, rr); !strings.Contains(msg, "submissions[1]") {
			t.Errorf("expected error naming submissions[1], got: %s", msg)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		rr := postJSON(t, server, "/triage/underwriting", domain.SubmissionBatch{})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		if msg := decodeError(t, rr); !strings.Contains(msg, "at least one record") {
			t.Errorf("unexpected error message: %s", msg)
		}
	})
}

func TestTriageCSVEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("SuccessfulUpload", func(t *testing.T) {
		rr := uploadCSV(t, server, "/triage/underwriting/csv", "submissions.csv", submissionsCSV)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(resp.Scores) != 2 {
			t.Fatalf("expected 2 scores, got %d", len(resp.Scores))
		}
		if resp.Scores[0].ID != "sub001" {
			t.Errorf("expected first score for sub001, got %s", resp.Scores[0].ID)
		}
	})

	t.Run("RejectsBadExtension", func(t *testing.T) {
		rr := uploadCSV(t, server, "/triage/underwriting/csv", "submissions.txt", submissionsCSV)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		if msg := decodeError(t, rr); msg != "File must be a CSV file" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})

	t.Run("RejectsMissingColumns", func(t *testing.T) {
		rr := uploadCSV(t, server, "/triage/underwriting/csv", "submissions.csv",
			"submission_id,sector\nsub001,Retail")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		if msg := decodeError(t, rr); !strings.Contains(msg, "Missing required columns in submissions CSV") {
			t.Errorf("unexpected error message: %s", msg)
		}
	})

	t.Run("MissingFilePart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/triage/underwriting/csv", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=empty")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRenewalEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("SuccessfulBatch", func(t *testing.T) {
		batch := domain.PolicyBatch{
			Policies: []domain.Policy{validPolicy("pol001"), validPolicy("pol002")},
		}

		rr := postJSON(t, server, "/renewals/priority", batch)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(resp.Scores) != 2 {
			t.Fatalf("expected 2 scores, got %d", len(resp.Scores))
		}
		for _, s := range resp.Scores {
			if len(s.Flags) != 0 {
				t.Errorf("expected no referral flags on policies, got %v", s.Flags)
			}
		}
	})

	t.Run("FirstBadRecordNamed", func(t *testing.T) {
		bad := validPolicy("pol_bad")
		bad.UtilizationPct = 1.5

		rr := postJSON(t, server, "/renewals/priority", domain.PolicyBatch{
			Policies: []domain.Policy{bad},
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		if msg := decodeError(t, rr); !strings.Contains(msg, "policies[0]") {
			t.Errorf("expected error naming policies[0], got: %s", msg)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/renewals/priority", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRenewalCSVEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	rr := uploadCSV(t, server, "/renewals/priority/csv", "policies.csv", policiesCSV)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp domain.ScoreResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(resp.Scores))
	}
	if resp.Scores[0].ID != "pol001" || resp.Scores[1].ID != "pol002" {
		t.Errorf("scores out of order: %s, %s", resp.Scores[0].ID, resp.Scores[1].ID)
	}
}

func TestPricingEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("SuccessfulBatch", func(t *testing.T) {
		rr := postJSON(t, server, "/pricing/suggest", domain.SubmissionBatch{
			Submissions: []domain.Submission{validSubmission("sub001")},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.PricingResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if len(resp.Suggestions) != 1 {
			t.Fatalf("expected 1 suggestion, got %d", len(resp.Suggestions))
		}

		s := resp.Suggestions[0]
		if s.SuggestedRateBps != 195 {
			t.Errorf("expected rate 195, got %d", s.SuggestedRateBps)
		}
		if s.BandCode != "A" {
			t.Errorf("expected band A, got %s", s.BandCode)
		}
		if s.BaseRateBps != 220 {
			t.Errorf("expected base rate 220, got %d", s.BaseRateBps)
		}
		if resp.FeatureImportance["Financials attached (-10 bps)"] != 1 {
			t.Errorf("expected financials adjustment counted once, got %v", resp.FeatureImportance)
		}
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		bad := validSubmission("sub_bad")
		bad.BrokerHitRate = 1.5

		rr := postJSON(t, server, "/pricing/suggest", domain.SubmissionBatch{
			Submissions: []domain.Submission{bad},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestPricingCSVEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	rr := uploadCSV(t, server, "/pricing/suggest/csv", "submissions.csv", submissionsCSV)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp domain.PricingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(resp.Suggestions))
	}
	for _, s := range resp.Suggestions {
		if s.SuggestedRateBps < 120 || s.SuggestedRateBps > 500 {
			t.Errorf("rate for %s outside bounds: %d", s.ID, s.SuggestedRateBps)
		}
	}
}

func TestPolicyCheckEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("Allowed", func(t *testing.T) {
		rr := postJSON(t, server, "/policy/check", domain.PolicyCheckRequest{
			Sector:          domain.SectorRetail,
			RequestedCovPct: 0.85,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.PolicyCheckResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !resp.Allowed {
			t.Error("expected allowed=true")
		}
		if resp.MaxAllowedCovPct != 0.9 {
			t.Errorf("expected max_allowed_cov_pct 0.9, got %v", resp.MaxAllowedCovPct)
		}
	})

	t.Run("ExceedsSectorLimit", func(t *testing.T) {
		rr := postJSON(t, server, "/policy/check", domain.PolicyCheckRequest{
			Sector:          domain.SectorAgri,
			RequestedCovPct: 0.95,
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}

		want := "Requested coverage 0.95 exceeds limit 0.80 for sector Agri."
		if msg := decodeError(t, rr); msg != want {
			t.Errorf("expected %q, got %q", want, msg)
		}
	})

	t.Run("UnknownSector", func(t *testing.T) {
		rr := postJSON(t, server, "/policy/check", domain.PolicyCheckRequest{
			Sector:          "Telecom",
			RequestedCovPct: 0.5,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CoverageOutOfRange", func(t *testing.T) {
		rr := postJSON(t, server, "/policy/check", domain.PolicyCheckRequest{
			Sector:          domain.SectorRetail,
			RequestedCovPct: 1.5,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestSystemEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("Root", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["message"] != "CreditX API" {
			t.Errorf("expected message CreditX API, got %s", resp["message"])
		}
	})

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("expected status healthy, got %s", resp["status"])
		}
		if resp["service"] != "creditx" {
			t.Errorf("expected service creditx, got %s", resp["service"])
		}
		if resp["timestamp"] == "" {
			t.Error("expected timestamp in response")
		}
	})

	t.Run("Version", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/version", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
		if resp["commit"] != "abc1234" {
			t.Errorf("expected commit abc1234, got %s", resp["commit"])
		}
		if resp["weights_version"] != "1.0.0" {
			t.Errorf("expected weights_version 1.0.0, got %s", resp["weights_version"])
		}
	})

	t.Run("RequestIDHeaders", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-42")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if got := rr.Header().Get("X-Request-ID"); got != "req-42" {
			t.Errorf("expected X-Request-ID req-42, got %s", got)
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header")
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/triage/underwriting", nil)
		req.Header.Set("Origin", "https://portal.example.com")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
			t.Errorf("expected origin echoed back, got %s", got)
		}
	})
}

func TestConfigEndpoints(t *testing.T) {
	server, weightsPath := createTestServer(t)

	t.Run("Current", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/config/current", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.WeightsConfig
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Version != "1.0.0" {
			t.Errorf("expected version 1.0.0, got %s", resp.Version)
		}
		if resp.SectorCoverageLimits["Retail"] != 0.9 {
			t.Errorf("expected Retail coverage limit 0.9, got %v", resp.SectorCoverageLimits["Retail"])
		}
	})

	t.Run("VersionsWithoutStore", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/config/versions", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Versions []*domain.WeightsDocument `json:"versions"`
			Count    int                       `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 0 || len(resp.Versions) != 0 {
			t.Errorf("expected empty version list, got count=%d", resp.Count)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		next := config.DefaultWeights()
		next.Version = "1.1.0"
		raw, err := config.MarshalWeights(next)
		if err != nil {
			t.Fatalf("failed to marshal weights: %v", err)
		}
		if err := os.WriteFile(weightsPath, raw, 0o644); err != nil {
			t.Fatalf("failed to rewrite weights file: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/admin/reload-weights", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "reloaded" {
			t.Errorf("expected status reloaded, got %s", resp["status"])
		}
		if resp["weights_version"] != "1.1.0" {
			t.Errorf("expected weights_version 1.1.0, got %s", resp["weights_version"])
		}

		// Scoring responses now carry the new generation
		scoreRR := postJSON(t, server, "/triage/underwriting", domain.SubmissionBatch{
			Submissions: []domain.Submission{validSubmission("sub001")},
		})
		var scoreResp domain.ScoreResponse
		if err := json.Unmarshal(scoreRR.Body.Bytes(), &scoreResp); err != nil {
			t.Fatalf("failed to parse score response: %v", err)
		}
		if scoreResp.WeightsVersion != "1.1.0" {
			t.Errorf("expected scores tagged 1.1.0, got %s", scoreResp.WeightsVersion)
		}
	})

	t.Run("ReloadFailureKeepsActiveDocument", func(t *testing.T) {
		if err := os.WriteFile(weightsPath, []byte("version: [broken"), 0o644); err != nil {
			t.Fatalf("failed to corrupt weights file: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/admin/reload-weights", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rr.Code)
		}

		// The active document survives the failed reload
		verReq := httptest.NewRequest(http.MethodGet, "/version", nil)
		verRR := httptest.NewRecorder()
		server.Router().ServeHTTP(verRR, verReq)

		var verResp map[string]string
		if err := json.Unmarshal(verRR.Body.Bytes(), &verResp); err != nil {
			t.Fatalf("failed to parse version response: %v", err)
		}
		if verResp["weights_version"] != "1.1.0" {
			t.Errorf("expected weights_version still 1.1.0, got %s", verResp["weights_version"])
		}
	})

	t.Run("UploadRejectedByFileSource", func(t *testing.T) {
		raw, err := config.MarshalWeights(config.DefaultWeights())
		if err != nil {
			t.Fatalf("failed to marshal weights: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/admin/weights", bytes.NewReader(raw))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
		if msg := decodeError(t, rr); !strings.Contains(msg, "does not accept uploads") {
			t.Errorf("unexpected error message: %s", msg)
		}
	})

	t.Run("UploadEmptyBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/weights", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestUploadWeightsStoreBacked(t *testing.T) {
	server := createStoreBackedServer(t)

	next := config.DefaultWeights()
	next.Version = "2.0.0"
	raw, err := config.MarshalWeights(next)
	if err != nil {
		t.Fatalf("failed to marshal weights: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/weights", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "installed" {
		t.Errorf("expected status installed, got %s", resp["status"])
	}
	if resp["weights_version"] != "2.0.0" {
		t.Errorf("expected weights_version 2.0.0, got %s", resp["weights_version"])
	}

	t.Run("HistoryListsBothRevisions", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/config/versions", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var listResp struct {
			Versions []*domain.WeightsDocument `json:"versions"`
			Count    int                       `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if listResp.Count != 2 {
			t.Fatalf("expected 2 revisions, got %d", listResp.Count)
		}

		active := 0
		for _, doc := range listResp.Versions {
			if doc.Active {
				active++
				if doc.Version != "2.0.0" {
					t.Errorf("expected 2.0.0 active, got %s", doc.Version)
				}
			}
		}
		if active != 1 {
			t.Errorf("expected exactly one active revision, got %d", active)
		}
	})

	t.Run("RejectsInvalidDocument", func(t *testing.T) {
		bad := config.DefaultWeights()
		bad.Version = ""
		raw, err := config.MarshalWeights(bad)
		if err != nil {
			t.Fatalf("failed to marshal weights: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/admin/weights", bytes.NewReader(raw))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}

		// Active document unchanged
		verReq := httptest.NewRequest(http.MethodGet, "/version", nil)
		verRR := httptest.NewRecorder()
		server.Router().ServeHTTP(verRR, verReq)

		var verResp map[string]string
		if err := json.Unmarshal(verRR.Body.Bytes(), &verResp); err != nil {
			t.Fatalf("failed to parse version response: %v", err)
		}
		if verResp["weights_version"] != "2.0.0" {
			t.Errorf("expected weights_version still 2.0.0, got %s", verResp["weights_version"])
		}
	})
}

func TestImportanceReportEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	// Wire a report worker to the same bus and aggregator the server uses
	h := server.Handler()
	wkr := worker.NewWorker(h.bus, h.aggregator)
	if err := wkr.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer wkr.Stop()

	rr := postJSON(t, server, "/pricing/suggest", domain.SubmissionBatch{
		Submissions: []domain.Submission{validSubmission("sub001"), validSubmission("sub002")},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// The batch event is folded in asynchronously
	deadline := time.Now().Add(2 * time.Second)
	var totals report.Totals
	for {
		req := httptest.NewRequest(http.MethodGet, "/reports/importance", nil)
		repRR := httptest.NewRecorder()
		server.Router().ServeHTTP(repRR, req)

		if repRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", repRR.Code)
		}
		if err := json.Unmarshal(repRR.Body.Bytes(), &totals); err != nil {
			t.Fatalf("failed to parse report: %v", err)
		}
		if totals.Batches == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("report never updated, totals: %+v", totals)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if totals.Records != 2 {
		t.Errorf("expected 2 records, got %d", totals.Records)
	}
	if totals.Counts["Financials attached (-10 bps)"] != 2 {
		t.Errorf("expected financials adjustment counted twice, got %v", totals.Counts)
	}
}
