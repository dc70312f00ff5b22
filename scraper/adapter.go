package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-scout/models"
	"rental-scout/utils"
)

// AdapterConfig configures one source adapter.
type AdapterConfig struct {
	BaseURL    string
	Site       string // optional: force a strategy instead of matching the host
	Timeout    time.Duration
	MaxResults int
}

// Adapter fetches one catalog's results page and extracts listings from it.
type Adapter struct {
	site       Site
	base       *url.URL
	baseURL    string
	sourceID   string
	fetcher    Fetcher
	timeout    time.Duration
	maxResults int
	now        func() time.Time
	logger     *utils.Logger
}

// NewAdapter resolves the site strategy for cfg.BaseURL once and returns a
// ready-to-use Adapter.
func NewAdapter(cfg AdapterConfig, fetcher Fetcher, logger *utils.Logger) (*Adapter, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scraper: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("scraper: timeout must be positive")
	}

	site := ResolveSite(cfg.Site, base.Hostname())
	sourceID := base.Hostname()

	return &Adapter{
		site:       site,
		base:       base,
		baseURL:    base.String(),
		sourceID:   sourceID,
		fetcher:    fetcher,
		timeout:    cfg.Timeout,
		maxResults: cfg.MaxResults,
		now:        time.Now,
		logger:     logger.With("component", "adapter", "source", sourceID, "site", site.Name),
	}, nil
}

// SourceID identifies the catalog in produced records.
func (a *Adapter) SourceID() string { return a.sourceID }

// SearchURL builds the catalog query URL for location and filter.
func (a *Adapter) SearchURL(location string, filter models.SearchFilter) string {
	return a.site.Query(a.baseURL, location, filter)
}

// FetchCandidates performs one timeout-bounded fetch and extracts at most
// MaxResults listings from the page.
func (a *Adapter) FetchCandidates(ctx context.Context, location string, filter models.SearchFilter) ([]models.ListingRecord, error) {
	searchURL := a.SearchURL(location, filter)
	a.logger.Debug("fetching", "url", searchURL)

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	page, err := a.fetcher.Fetch(fetchCtx, searchURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &FetchError{Kind: KindParse, URL: searchURL, Err: err}
	}

	ex := &extractor{
		selectors:  a.site.Selectors,
		sourceID:   a.sourceID,
		maxResults: a.maxResults,
		fetchedAt:  a.now(),
	}
	listings := ex.extract(doc, a.pageBase(page))

	a.logger.Debug("extracted", "url", searchURL, "listings", len(listings))
	return listings, nil
}

// pageBase is the URL relative links resolve against: the final page URL
// after redirects, or the configured base when the fetcher did not report one.
func (a *Adapter) pageBase(page *Page) *url.URL {
	if u, err := url.Parse(page.URL); err == nil && u.IsAbs() {
		return u
	}
	return a.base
}
