package models

import (
	"time"

	"github.com/google/uuid"
)

// PreferenceField names a stored search preference a user can edit.
type PreferenceField string

const (
	PrefPriceMin     PreferenceField = "price_min"
	PrefPriceMax     PreferenceField = "price_max"
	PrefSurfaceMin   PreferenceField = "surface_min"
	PrefSurfaceMax   PreferenceField = "surface_max"
	PrefPropertyType PreferenceField = "property_type"
	PrefLocation     PreferenceField = "location"
)

// PropertyTypes lists the property types a user may pick.
var PropertyTypes = []string{"Appartement", "Maison", "Studio", "Loft", "Chambre"}

// UserPreferences holds the search criteria and alert settings saved per user.
type UserPreferences struct {
	ChatID        int64
	Email         string
	Location      string
	PriceMin      *int
	PriceMax      *int
	SurfaceMin    *int
	SurfaceMax    *int
	PropertyType  string
	Notifications bool
}

// Filter builds a search filter for location from the saved preferences.
func (p UserPreferences) Filter(location string) SearchFilter {
	return SearchFilter{
		Location:     location,
		PriceMin:     p.PriceMin,
		PriceMax:     p.PriceMax,
		SurfaceMin:   p.SurfaceMin,
		SurfaceMax:   p.SurfaceMax,
		PropertyType: p.PropertyType,
	}
}

// SearchEvent is one row of the append-only search log used for reporting.
type SearchEvent struct {
	ID        uuid.UUID
	ChatID    int64
	Query     string
	Results   int
	CreatedAt time.Time
}

// Stats is the usage snapshot shown to a user.
type Stats struct {
	UserSearches   int64
	TotalUsers     int64
	TotalSearches  int64
	ActiveSearches int64
	MaxConcurrent  int64
	Uptime         time.Duration
}
