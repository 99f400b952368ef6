// Package config loads, validates, and hot-swaps the weights document that
// drives scoring and pricing.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/creditx/internal/domain"
)

// Validator inspects a candidate document before it becomes active. A non-nil
// error rejects the candidate and leaves the active document untouched.
type Validator func(*domain.WeightsConfig) error

// Store holds the active weights document. Every swap goes through the full
// parse and validate pipeline first, so readers observe either the previous
// document or the new one, never a mix of the two.
type Store struct {
	source     Source
	audit      domain.DocumentStore
	validators []Validator

	current atomic.Pointer[domain.WeightsConfig]
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithAudit records load, reload, and upload outcomes in the given store.
func WithAudit(store domain.DocumentStore) Option {
	return func(s *Store) { s.audit = store }
}

// WithValidator registers a hook run against every candidate document after
// structural validation. Used to compile referral rule expressions before
// the document can go live.
func WithValidator(v Validator) Option {
	return func(s *Store) { s.validators = append(s.validators, v) }
}

// New builds a Store and performs the initial load from source.
func New(ctx context.Context, source Source, opts ...Option) (*Store, error) {
	s := &Store{source: source}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial weights load: %w", err)
	}
	s.current.Store(cfg)
	s.recordAudit(ctx, domain.AuditLoaded, cfg.Version, source.Describe())

	return s, nil
}

// Current returns the active document. Callers must treat it as read-only
// and keep working off the same pointer for a whole batch.
func (s *Store) Current() *domain.WeightsConfig {
	return s.current.Load()
}

// Version returns the version string of the active document.
func (s *Store) Version() string {
	return s.Current().Version
}

// Describe reports where the active document comes from.
func (s *Store) Describe() string {
	return s.source.Describe()
}

// Reload re-reads the source and swaps the result in. On any error the
// active document stays in place and the failure is recorded in the audit
// trail.
func (s *Store) Reload(ctx context.Context) (*domain.WeightsConfig, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		s.recordAudit(ctx, domain.AuditReloadFailed, s.Version(), err.Error())
		return nil, err
	}

	s.current.Store(cfg)
	s.recordAudit(ctx, domain.AuditReloaded, cfg.Version, s.source.Describe())
	slog.Info("weights reloaded", "version", cfg.Version, "source", s.source.Describe())

	return cfg, nil
}

// Install validates a raw uploaded document, persists it through the source,
// and makes it active. Sources that cannot persist return ErrReadOnlySource
// and the upload is rejected before anything changes.
func (s *Store) Install(ctx context.Context, raw []byte) (*domain.WeightsConfig, error) {
	cfg, err := s.parseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	w, ok := s.source.(Writable)
	if !ok {
		return nil, ErrReadOnlySource
	}
	if err := w.Put(ctx, cfg.Version, raw); err != nil {
		return nil, fmt.Errorf("persist weights document: %w", err)
	}

	s.current.Store(cfg)
	s.recordAudit(ctx, domain.AuditUploaded, cfg.Version, s.source.Describe())
	slog.Info("weights document installed", "version", cfg.Version)

	return cfg, nil
}

func (s *Store) load(ctx context.Context) (*domain.WeightsConfig, error) {
	raw, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.parseAndValidate(raw)
}

func (s *Store) parseAndValidate(raw []byte) (*domain.WeightsConfig, error) {
	cfg, err := ParseWeights(raw)
	if err != nil {
		return nil, err
	}
	for _, validate := range s.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
		}
	}
	return cfg, nil
}

func (s *Store) recordAudit(ctx context.Context, event, version, detail string) {
	if s.audit == nil {
		return
	}
	entry := &domain.ConfigAudit{
		Event:     event,
		Version:   version,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		slog.Error("failed to record config audit", "event", event, "error", err)
	}
}

// ParseWeights decodes a weights document and checks its structural
// invariants. YAML 1.2 is a superset of JSON, so both encodings are
// accepted.
func ParseWeights(raw []byte) (*domain.WeightsConfig, error) {
	var cfg domain.WeightsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	return &cfg, nil
}

// MarshalWeights encodes a weights document as YAML.
func MarshalWeights(cfg *domain.WeightsConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}
