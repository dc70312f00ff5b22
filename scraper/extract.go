package scraper

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"rental-scout/models"
	"rental-scout/utils"
)

const (
	minTitleLen = 6
	maxImages   = 2
)

var imageAttrs = []string{"src", "data-src", "data-lazy"}

// extractor pulls listings out of a parsed results page.
type extractor struct {
	selectors  SelectorSet
	sourceID   string
	maxResults int
	fetchedAt  time.Time
}

// extract walks the containers in document order and stops as soon as
// maxResults listings have been collected.
func (e *extractor) extract(doc *goquery.Document, base *url.URL) []models.ListingRecord {
	base = documentBase(doc, base)
	listings := make([]models.ListingRecord, 0, e.maxResults)
	if e.maxResults <= 0 {
		return listings
	}

	doc.Find(e.selectors.Container).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if l, ok := e.extractOne(card, base); ok {
			listings = append(listings, l)
		}
		return len(listings) < e.maxResults
	})
	return listings
}

func (e *extractor) extractOne(card *goquery.Selection, base *url.URL) (models.ListingRecord, bool) {
	title := utils.CleanText(firstText(card, e.selectors.Title))
	if utf8.RuneCountInString(title) < minTitleLen {
		return models.ListingRecord{}, false
	}

	return models.ListingRecord{
		Title:       title,
		Price:       utils.FormatPrice(firstText(card, e.selectors.Price)),
		Surface:     utils.FormatSurface(firstText(card, e.selectors.Surface)),
		Location:    utils.CleanText(firstText(card, e.selectors.Location)),
		Description: utils.CleanText(firstText(card, e.selectors.Description)),
		URL:         e.link(card, base),
		Images:      images(card, base),
		SourceID:    e.sourceID,
		FetchedAt:   e.fetchedAt,
	}, true
}

func (e *extractor) link(card *goquery.Selection, base *url.URL) string {
	anchor := card.Find(e.selectors.Link).First()
	if anchor.Length() == 0 && card.Is(e.selectors.Link) {
		anchor = card
	}
	href, _ := anchor.Attr("href")
	return resolve(base, href)
}

func images(card *goquery.Selection, base *url.URL) []string {
	var out []string
	card.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := ""
		for _, attr := range imageAttrs {
			if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
				src = v
				break
			}
		}
		if src == "" || strings.Contains(src, "placeholder") || strings.Contains(src, "loading") {
			return true
		}
		if abs := resolve(base, src); abs != "" {
			out = append(out, abs)
		}
		return len(out) < maxImages
	})
	return out
}

func firstText(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().Text())
}

// documentBase honours a <base href> element, resolved against the page URL.
func documentBase(doc *goquery.Document, base *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return base
	}
	u, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return base
	}
	return u
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}
