package scraper

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leboncoinPage = `<html><body>
<a data-qa-id="aditem_container" href="/locations/101.htm">
  <p data-qa-id="aditem_title">  Appartement   T2 lumineux </p>
  <span data-qa-id="aditem_price">950 € par mois</span>
  <span data-qa-id="criteria_item_square">45 m²</span>
  <p data-qa-id="aditem_location">Lyon 3e</p>
  <img src="/img/placeholder.png">
  <img data-src="https://img.example.com/1.jpg">
  <img src="/img/2.jpg">
  <img src="/img/3.jpg">
</a>
<a data-qa-id="aditem_container" href="/locations/102.htm">
  <p data-qa-id="aditem_title">T1</p>
  <span data-qa-id="aditem_price">500 €</span>
</a>
<a data-qa-id="aditem_container" href="https://mirror.example.org/103">
  <p data-qa-id="aditem_title">Studio meublé proche gare</p>
  <span data-qa-id="aditem_price">prix sur demande</span>
  <p data-qa-id="aditem_location">Lyon 7e</p>
  <div class="desc">Calme,
     refait à neuf</div>
</a>
</body></html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtractLeboncoin(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	ex := &extractor{selectors: leboncoinSite.Selectors, sourceID: "www.leboncoin.fr", maxResults: 10, fetchedAt: now}

	got := ex.extract(parseDoc(t, leboncoinPage), mustURL(t, "https://www.leboncoin.fr"))

	require.Len(t, got, 2, "short title must be dropped")

	first := got[0]
	assert.Equal(t, "Appartement T2 lumineux", first.Title)
	assert.Equal(t, "950€/mois", first.Price)
	assert.Equal(t, "45m²", first.Surface)
	assert.Equal(t, "Lyon 3e", first.Location)
	assert.Equal(t, "https://www.leboncoin.fr/locations/101.htm", first.URL)
	assert.Equal(t, []string{"https://img.example.com/1.jpg", "https://www.leboncoin.fr/img/2.jpg"}, first.Images)
	assert.Equal(t, "www.leboncoin.fr", first.SourceID)
	assert.Equal(t, now, first.FetchedAt)

	second := got[1]
	assert.Equal(t, "prix sur demande", second.Price)
	assert.Empty(t, second.Surface)
	assert.Equal(t, "https://mirror.example.org/103", second.URL)
	assert.Equal(t, "Calme, refait à neuf", second.Description)
	assert.Empty(t, second.Images)
}

func TestExtractStopsAtCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		b.WriteString(`<article><h2>Maison avec jardin</h2><span class="price">1200 €</span><a href="/a">voir</a></article>`)
	}
	b.WriteString("</body></html>")

	ex := &extractor{selectors: defaultSite.Selectors, sourceID: "www.pap.fr", maxResults: 3}
	got := ex.extract(parseDoc(t, b.String()), mustURL(t, "https://www.pap.fr"))

	require.Len(t, got, 3)
	for _, l := range got {
		assert.Equal(t, "1200€/mois", l.Price)
		assert.Equal(t, "https://www.pap.fr/a", l.URL)
	}
}

func TestExtractHonoursBaseElement(t *testing.T) {
	html := `<html><head><base href="https://cdn.example.com/annonces/"></head><body>
<div class="listing"><h3>Loft industriel canal</h3><a href="loft-9">voir</a><img src="p/9.jpg"></div>
</body></html>`

	ex := &extractor{selectors: defaultSite.Selectors, sourceID: "www.pap.fr", maxResults: 10}
	got := ex.extract(parseDoc(t, html), mustURL(t, "https://www.pap.fr"))

	require.Len(t, got, 1)
	assert.Equal(t, "https://cdn.example.com/annonces/loft-9", got[0].URL)
	assert.Equal(t, []string{"https://cdn.example.com/annonces/p/9.jpg"}, got[0].Images)
}

func TestExtractZeroCap(t *testing.T) {
	ex := &extractor{selectors: leboncoinSite.Selectors, maxResults: 0}
	got := ex.extract(parseDoc(t, leboncoinPage), mustURL(t, "https://www.leboncoin.fr"))
	assert.Empty(t, got)
}
