package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"rental-scout/models"
)

// SelectorSet holds the CSS selectors used to pull one listing out of a
// results page.
type SelectorSet struct {
	Container   string
	Title       string
	Price       string
	Surface     string
	Location    string
	Description string
	Link        string
}

// QueryBuilder turns a location and filter into a search URL under base.
type QueryBuilder func(base string, location string, f models.SearchFilter) string

// Site is the extraction strategy for one catalog.
type Site struct {
	Name      string
	Selectors SelectorSet
	Query     QueryBuilder
}

const descriptionSelector = ".description, .desc, .details"

var (
	leboncoinSite = Site{
		Name: "leboncoin",
		Selectors: SelectorSet{
			Container:   `[data-qa-id="aditem_container"]`,
			Title:       `[data-qa-id="aditem_title"]`,
			Price:       `[data-qa-id="aditem_price"]`,
			Surface:     `[data-qa-id="criteria_item_square"]`,
			Location:    `[data-qa-id="aditem_location"]`,
			Description: descriptionSelector,
			Link:        `a[data-qa-id="aditem_container"]`,
		},
		Query: leboncoinQuery,
	}

	selogerSite = Site{
		Name: "seloger",
		Selectors: SelectorSet{
			Container:   ".c-pa-list",
			Title:       ".c-pa-link",
			Price:       ".c-pa-price",
			Surface:     ".c-pa-criterion",
			Location:    ".c-pa-city",
			Description: descriptionSelector,
			Link:        ".c-pa-link",
		},
		Query: selogerQuery,
	}

	defaultSite = Site{
		Name: "default",
		Selectors: SelectorSet{
			Container:   ".ad, .annonce, .listing, .property, .card, .item, .result, article",
			Title:       ".title, h2, h3, .name, .ad-title, .property-title",
			Price:       `.price, .prix, .cost, [class*="price"]`,
			Surface:     `.surface, .area, [class*="surface"]`,
			Location:    ".location, .address, .city, .lieu",
			Description: descriptionSelector,
			Link:        "a",
		},
		Query: genericQuery,
	}

	knownSites = []Site{leboncoinSite, selogerSite}
)

// ResolveSite picks the strategy for a catalog. An explicit name wins;
// otherwise the first known site whose name appears in host is used, falling
// back to the generic rules.
func ResolveSite(name, host string) Site {
	if name != "" {
		for _, s := range knownSites {
			if s.Name == name {
				return s
			}
		}
		return defaultSite
	}
	for _, s := range knownSites {
		if strings.Contains(host, s.Name) {
			return s
		}
	}
	return defaultSite
}

func leboncoinQuery(base, location string, f models.SearchFilter) string {
	params := url.Values{}
	params.Set("locations", location)
	params.Set("category", "10") // real estate rentals
	if r, ok := boundRange(f.PriceMin, f.PriceMax, "-", "", ""); ok {
		params.Set("price", r)
	}
	if r, ok := boundRange(f.SurfaceMin, f.SurfaceMax, "-", "", ""); ok {
		params.Set("square", r)
	}
	return base + "/annonces/offres/locations/?" + params.Encode()
}

func selogerQuery(base, location string, f models.SearchFilter) string {
	params := url.Values{}
	params.Set("localisationIds", location)
	params.Set("typeTransaction", "1") // rental
	if r, ok := boundRange(f.PriceMin, f.PriceMax, "/", "0", "max"); ok {
		params.Set("prix", r)
	}
	if r, ok := boundRange(f.SurfaceMin, f.SurfaceMax, "/", "0", "max"); ok {
		params.Set("surface", r)
	}
	return base + "/list.htm?" + params.Encode()
}

// genericQuery forwards every provided filter field as-is.
func genericQuery(base, location string, f models.SearchFilter) string {
	params := url.Values{}
	params.Set("location", location)
	setInt(params, "priceMin", f.PriceMin)
	setInt(params, "priceMax", f.PriceMax)
	setInt(params, "surfaceMin", f.SurfaceMin)
	setInt(params, "surfaceMax", f.SurfaceMax)
	if f.PropertyType != "" {
		params.Set("propertyType", f.PropertyType)
	}
	return base + "/search/?" + params.Encode()
}

func boundRange(min, max *int, sep, emptyMin, emptyMax string) (string, bool) {
	if min == nil && max == nil {
		return "", false
	}
	lo, hi := emptyMin, emptyMax
	if min != nil {
		lo = strconv.Itoa(*min)
	}
	if max != nil {
		hi = strconv.Itoa(*max)
	}
	return lo + sep + hi, true
}

func setInt(params url.Values, key string, v *int) {
	if v != nil {
		params.Set(key, strconv.Itoa(*v))
	}
}
