package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-scout/models"
	"rental-scout/utils"
)

func newTestAdapter(t *testing.T, baseURL, site string, timeout time.Duration) *Adapter {
	t.Helper()
	a, err := NewAdapter(AdapterConfig{BaseURL: baseURL, Site: site, Timeout: timeout, MaxResults: 10},
		NewHTTPFetcher(nil, ""), utils.NewNopLogger())
	require.NoError(t, err)
	return a
}

func TestAdapterFetchesAndExtracts(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		_, _ = w.Write([]byte(leboncoinPage))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, "leboncoin", time.Second)
	got, err := a.FetchCandidates(context.Background(), "Lyon", models.SearchFilter{PriceMin: models.IntPtr(500)})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, srv.URL+"/locations/101.htm", got[0].URL)
	assert.Equal(t, "127.0.0.1", got[0].SourceID)

	req := <-requests
	assert.Equal(t, DefaultUserAgent, req.Header.Get("User-Agent"))
	assert.Contains(t, req.Header.Get("Accept-Language"), "fr-FR")
	assert.Equal(t, "/annonces/offres/locations/?category=10&locations=Lyon&price=500-", req.URL.RequestURI())
}

func TestAdapterHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, "", time.Second)
	_, err := a.FetchCandidates(context.Background(), "Paris", models.SearchFilter{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "want *FetchError, got %v", err)
	assert.Equal(t, KindHTTPStatus, fe.Kind)
	assert.Equal(t, http.StatusForbidden, fe.Code)
}

func TestAdapterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := a.FetchCandidates(context.Background(), "Paris", models.SearchFilter{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "want *FetchError, got %v", err)
	assert.Equal(t, KindTimeout, fe.Kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAdapterNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	a := newTestAdapter(t, base, "", time.Second)
	_, err := a.FetchCandidates(context.Background(), "Paris", models.SearchFilter{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "want *FetchError, got %v", err)
	assert.Equal(t, KindNetwork, fe.Kind)
}

func TestNewAdapterRejectsBadConfig(t *testing.T) {
	_, err := NewAdapter(AdapterConfig{BaseURL: "not a url", Timeout: time.Second}, NewHTTPFetcher(nil, ""), utils.NewNopLogger())
	assert.Error(t, err)

	_, err = NewAdapter(AdapterConfig{BaseURL: "https://www.pap.fr"}, NewHTTPFetcher(nil, ""), utils.NewNopLogger())
	assert.Error(t, err)
}

func TestAdapterResolvesLinksAgainstFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mirror/resultats/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="listing"><h2>Duplex sous les toits</h2>
<span class="price">1100 €</span><span class="surface">58 m²</span><a href="annonce-5">voir</a></div></body></html>`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/mirror/resultats/", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, "", time.Second)
	got, err := a.FetchCandidates(context.Background(), "Nantes", models.SearchFilter{})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, srv.URL+"/mirror/resultats/annonce-5", got[0].URL)
	assert.Equal(t, "58m²", got[0].Surface)
}
