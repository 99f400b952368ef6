package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/opensource-finance/creditx/internal/domain"
)

// ErrReadOnlySource is returned when a document upload reaches a source that
// cannot persist revisions (the plain file source).
var ErrReadOnlySource = errors.New("weights source does not accept uploads")

// Source supplies the raw bytes of the weights document. Load is called on
// first boot and on every explicit reload.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
	Describe() string
}

// Writable is implemented by sources that keep revision history and can
// accept new documents at runtime.
type Writable interface {
	Put(ctx context.Context, version string, raw []byte) error
}

// FileSource reads the weights document from a path on local storage.
type FileSource struct {
	Path string
}

// NewFileSource returns a source backed by a single document file.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads the document bytes from disk.
func (s *FileSource) Load(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read weights document: %w", err)
	}
	return raw, nil
}

// Describe identifies the source in logs and events.
func (s *FileSource) Describe() string {
	return "file:" + s.Path
}

// StoreSource reads the active weights document from the document store.
// An empty store is seeded from BootstrapPath, or from the compiled-in
// defaults when no bootstrap file exists.
type StoreSource struct {
	Store         domain.DocumentStore
	BootstrapPath string
}

// NewStoreSource returns a source backed by the document store.
func NewStoreSource(store domain.DocumentStore, bootstrapPath string) *StoreSource {
	return &StoreSource{Store: store, BootstrapPath: bootstrapPath}
}

// Load returns the active document, seeding the store on first boot.
func (s *StoreSource) Load(ctx context.Context) ([]byte, error) {
	doc, err := s.Store.GetActiveDocument(ctx)
	if err == nil {
		return doc.Body, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load active weights document: %w", err)
	}
	return s.seed(ctx)
}

// Describe identifies the source in logs and events.
func (s *StoreSource) Describe() string {
	return "store"
}

// Put validates nothing itself; the config store parses and validates before
// calling it. The new revision becomes active immediately.
func (s *StoreSource) Put(ctx context.Context, version string, raw []byte) error {
	doc := &domain.WeightsDocument{
		Version:   version,
		Body:      raw,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save weights document %s: %w", version, err)
	}
	if err := s.Store.ActivateDocument(ctx, version); err != nil {
		return fmt.Errorf("activate weights document %s: %w", version, err)
	}
	return nil
}

func (s *StoreSource) seed(ctx context.Context) ([]byte, error) {
	var raw []byte
	if s.BootstrapPath != "" {
		b, err := os.ReadFile(s.BootstrapPath)
		if err == nil {
			raw = b
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read bootstrap weights document: %w", err)
		}
	}
	if raw == nil {
		b, err := MarshalWeights(DefaultWeights())
		if err != nil {
			return nil, err
		}
		raw = b
	}

	cfg, err := ParseWeights(raw)
	if err != nil {
		return nil, fmt.Errorf("seed weights document: %w", err)
	}
	if err := s.Put(ctx, cfg.Version, raw); err != nil {
		return nil, err
	}
	return raw, nil
}
