// Package scoring provides the weighted triage and renewal evaluators and
// the CEL-Go based referral rule engine.
package scoring

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/creditx/internal/domain"
)

// Engine scores submission and policy batches against a weights document.
// The linear formulas read the document passed per call; the document's
// referral rules (CEL predicates) are compiled once per document and the
// compiled set is swapped on reload.
type Engine struct {
	env *cel.Env

	mu     sync.RWMutex
	active *referralSet
}

// referralSet pairs compiled referral programs with the document they were
// compiled from, so a batch scored against one document never mixes in
// programs from another.
type referralSet struct {
	source *domain.WeightsConfig
	rules  []compiledReferral
}

type compiledReferral struct {
	name    string
	flag    string
	program cel.Program
}

// NewEngine creates a scoring engine.
func NewEngine() (*Engine, error) {
	// CEL environment with one variable per submission field
	env, err := cel.NewEnv(
		cel.Variable("submission_id", cel.StringType),
		cel.Variable("broker", cel.StringType),
		cel.Variable("sector", cel.StringType),
		cel.Variable("exposure_limit", cel.DoubleType),
		cel.Variable("debtor_days", cel.DoubleType),
		cel.Variable("financials_attached", cel.BoolType),
		cel.Variable("years_trading", cel.DoubleType),
		cel.Variable("broker_hit_rate", cel.DoubleType),
		cel.Variable("requested_cov_pct", cel.DoubleType),
		cel.Variable("has_judgements", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// ValidateConfig compiles every referral rule in the document without
// loading anything. The config store runs this before a candidate document
// can go live, so a broken expression never replaces a working one.
func (e *Engine) ValidateConfig(cfg *domain.WeightsConfig) error {
	_, err := e.compile(cfg)
	return err
}

// Reload compiles the document's referral rules and makes them the active
// set. Called after the config store has swapped in a new document.
func (e *Engine) Reload(cfg *domain.WeightsConfig) error {
	set, err := e.compile(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.active = set
	e.mu.Unlock()

	return nil
}

// ReferralRulesCount returns the number of compiled referral rules.
func (e *Engine) ReferralRulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.active == nil {
		return 0
	}
	return len(e.active.rules)
}

func (e *Engine) compile(cfg *domain.WeightsConfig) (*referralSet, error) {
	set := &referralSet{source: cfg}

	for _, rule := range cfg.ReferralRules {
		ast, issues := e.env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile referral rule %s: %w", rule.Name, issues.Err())
		}

		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("referral rule %s: expression must return bool, got %s", rule.Name, ast.OutputType())
		}

		program, err := e.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create program for referral rule %s: %w", rule.Name, err)
		}

		set.rules = append(set.rules, compiledReferral{
			name:    rule.Name,
			flag:    rule.Flag,
			program: program,
		})
	}

	return set, nil
}

// referralsFor returns the compiled rules for the given document. Around a
// reload a batch may briefly hold a document the active set was not compiled
// from; that batch gets a one-off compilation instead of mismatched programs.
func (e *Engine) referralsFor(cfg *domain.WeightsConfig) []compiledReferral {
	e.mu.RLock()
	active := e.active
	e.mu.RUnlock()

	if active != nil && active.source == cfg {
		return active.rules
	}

	set, err := e.compile(cfg)
	if err != nil {
		slog.Error("failed to compile referral rules", "version", cfg.Version, "error", err)
		return nil
	}
	return set.rules
}

// referralFlags evaluates the compiled rules against one submission.
// Evaluation errors skip the rule; they never fail the batch.
func (e *Engine) referralFlags(rules []compiledReferral, sub *domain.Submission) []string {
	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"submission_id":       sub.SubmissionID,
		"broker":              sub.Broker,
		"sector":              string(sub.Sector),
		"exposure_limit":      sub.ExposureLimit,
		"debtor_days":         sub.DebtorDays,
		"financials_attached": sub.FinancialsAttached,
		"years_trading":       sub.YearsTrading,
		"broker_hit_rate":     sub.BrokerHitRate,
		"requested_cov_pct":   sub.RequestedCovPct,
		"has_judgements":      sub.HasJudgements,
	}

	var flags []string
	for _, rule := range rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Error("referral rule evaluation failed",
				"rule", rule.name,
				"submission_id", sub.SubmissionID,
				"error", err)
			continue
		}

		if triggered, ok := out.(types.Bool); ok && bool(triggered) {
			flags = append(flags, rule.flag)
		}
	}

	return flags
}
