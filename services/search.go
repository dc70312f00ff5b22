package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"rental-scout/models"
	"rental-scout/utils"
)

// ErrConcurrencyLimitExceeded matches a CoordinatorError of kind
// ConcurrencyLimitExceeded through errors.Is.
var ErrConcurrencyLimitExceeded = errors.New("search: concurrency limit exceeded")

// CoordinatorErrorKind classifies a CoordinatorError.
type CoordinatorErrorKind int

const (
	ConcurrencyLimitExceeded CoordinatorErrorKind = iota + 1
)

// CoordinatorError is returned when a search is not admitted.
type CoordinatorError struct {
	Kind    CoordinatorErrorKind
	Active  int64
	Ceiling int64
}

func (e *CoordinatorError) Error() string {
	return fmt.Sprintf("search: concurrency limit exceeded (%d/%d in flight)", e.Active, e.Ceiling)
}

func (e *CoordinatorError) Is(target error) bool {
	return target == ErrConcurrencyLimitExceeded && e.Kind == ConcurrencyLimitExceeded
}

// Source is one external catalog the coordinator can query.
type Source interface {
	SourceID() string
	FetchCandidates(ctx context.Context, location string, filter models.SearchFilter) ([]models.ListingRecord, error)
}

// CoordinatorConfig holds the limits applied to every search.
type CoordinatorConfig struct {
	MaxSourcesPerSearch int
	MaxResults          int
	MaxConcurrent       int
	Retry               utils.RetryConfig
}

// Coordinator fans a search out to its sources and merges the results.
// Admission is gated globally across all callers of the same Coordinator.
type Coordinator struct {
	sources []Source
	cfg     CoordinatorConfig
	gate    *utils.AdmissionGate
	logger  *utils.Logger
}

// NewCoordinator creates a Coordinator over sources. Only the first
// MaxSourcesPerSearch sources are queried per search.
func NewCoordinator(sources []Source, cfg CoordinatorConfig, logger *utils.Logger) *Coordinator {
	if cfg.MaxSourcesPerSearch <= 0 || cfg.MaxSourcesPerSearch > len(sources) {
		cfg.MaxSourcesPerSearch = len(sources)
	}
	logger = logger.With("component", "coordinator")
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}
	return &Coordinator{
		sources: sources,
		cfg:     cfg,
		gate:    utils.NewAdmissionGate(cfg.MaxConcurrent),
		logger:  logger,
	}
}

// Active returns the number of searches currently in flight.
func (c *Coordinator) Active() int64 { return c.gate.Active() }

// Ceiling returns the maximum number of searches allowed in flight.
func (c *Coordinator) Ceiling() int64 { return c.gate.Ceiling() }

type sourceOutcome struct {
	records []models.ListingRecord
	err     error
}

// Search queries the configured sources concurrently and returns at most
// MaxResults deduplicated records with non-empty titles, in source order.
// A failing source never fails the search; it only contributes nothing.
func (c *Coordinator) Search(ctx context.Context, location string, filter models.SearchFilter) ([]models.ListingRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if !c.gate.TryAcquire() {
		return nil, &CoordinatorError{Kind: ConcurrencyLimitExceeded, Active: c.gate.Active(), Ceiling: c.gate.Ceiling()}
	}
	defer c.gate.Release()

	sources := c.sources[:c.cfg.MaxSourcesPerSearch]
	outcomes := make([]sourceOutcome, len(sources))

	// Each source writes only its own slot; failures are recorded there.
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = c.fetchSource(ctx, src, location, filter)
		}()
	}
	wg.Wait()

	var merged []models.ListingRecord
	failed := 0
	for i, out := range outcomes {
		if out.err != nil {
			failed++
			c.logger.Error("source failed", out.err, "source", sources[i].SourceID(), "location", location)
			continue
		}
		for _, r := range out.records {
			if strings.TrimSpace(r.Title) == "" {
				continue
			}
			merged = append(merged, r)
		}
	}

	if c.cfg.MaxResults >= 0 && len(merged) > c.cfg.MaxResults {
		merged = merged[:c.cfg.MaxResults]
	}
	results := Dedupe(merged)

	c.logger.Info("search finished",
		"location", location,
		"sources", len(sources),
		"failed", failed,
		"results", len(results))
	return results, nil
}

func (c *Coordinator) fetchSource(ctx context.Context, src Source, location string, filter models.SearchFilter) (out sourceOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = sourceOutcome{err: fmt.Errorf("source %s panicked: %v", src.SourceID(), r)}
		}
	}()

	err := c.cfg.Retry.Do(ctx, "fetch "+src.SourceID(), func(ctx context.Context) error {
		records, err := src.FetchCandidates(ctx, location, filter)
		if err != nil {
			return err
		}
		out.records = records
		return nil
	})
	out.err = err
	return out
}
