package models

import (
	"errors"
	"time"
)

// SearchFilter carries the criteria a caller passes into a search.
// Nil numeric fields are absent; present ones are non-negative.
type SearchFilter struct {
	Location     string
	PriceMin     *int
	PriceMax     *int
	SurfaceMin   *int
	SurfaceMax   *int
	PropertyType string
}

// Validate rejects negative bounds.
func (f SearchFilter) Validate() error {
	for _, v := range []*int{f.PriceMin, f.PriceMax, f.SurfaceMin, f.SurfaceMax} {
		if v != nil && *v < 0 {
			return errors.New("search filter: numeric bounds must be non-negative")
		}
	}
	return nil
}

// IntPtr is a small helper for building filters.
func IntPtr(v int) *int { return &v }

// ListingRecord is a normalized listing produced by a source adapter.
// It is never mutated after creation.
type ListingRecord struct {
	Title       string
	Price       string
	Surface     string
	Location    string
	Description string
	URL         string
	Images      []string
	SourceID    string
	FetchedAt   time.Time
}

// ListingKey is the dedupe identity of a listing. The URL is deliberately
// excluded: mirrors publish the same listing under different URLs.
type ListingKey struct {
	Title    string
	Price    string
	Location string
}

// Key returns the dedupe identity of the record.
func (r ListingRecord) Key() ListingKey {
	return ListingKey{Title: r.Title, Price: r.Price, Location: r.Location}
}

// SearchSummary is the aggregate view over one result set.
type SearchSummary struct {
	Count        int
	AveragePrice float64
	MinPrice     float64
	MaxPrice     float64
	Sources      []string
	ByLocation   map[string]int
}
