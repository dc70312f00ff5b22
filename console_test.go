package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-scout/models"
	"rental-scout/scraper"
	"rental-scout/services"
	"rental-scout/session"
	"rental-scout/storage"
	"rental-scout/utils"
)

type card struct{ title, price, city string }

func catalog(t *testing.T, cards ...card) *httptest.Server {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, c := range cards {
		fmt.Fprintf(&b, `<div class="listing"><h2>%s</h2><span class="price">%s</span><span class="city">%s</span><a href="/annonce/%d">voir</a></div>`,
			c.title, c.price, c.city, i)
	}
	b.WriteString("</body></html>")
	page := b.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConversation(t *testing.T, servers ...*httptest.Server) (*services.Conversation, *storage.SQLStore) {
	t.Helper()
	logger := utils.NewNopLogger()

	store, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fetcher := scraper.NewHTTPFetcher(&http.Client{}, "")
	var sources []services.Source
	for _, srv := range servers {
		ad, err := scraper.NewAdapter(scraper.AdapterConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxResults: 10}, fetcher, logger)
		require.NoError(t, err)
		sources = append(sources, ad)
	}
	coord := services.NewCoordinator(sources, services.CoordinatorConfig{
		MaxSourcesPerSearch: 2,
		MaxResults:          10,
		MaxConcurrent:       3,
		Retry:               utils.RetryConfig{MaxAttempts: 1},
	}, logger)

	sessions := session.NewStore(store, time.Minute, logger)
	return services.NewConversation(sessions, store, store, coord, logger), store
}

func TestConsoleSearchEndToEnd(t *testing.T) {
	// Both catalogs list the same studio; one listing is unique to each.
	a := catalog(t,
		card{"Studio lumineux Croix-Rousse", "650 €", "Lyon 4e"},
		card{"Appartement T2 Part-Dieu", "900 € CC", "Lyon 3e"},
	)
	b := catalog(t,
		card{"Studio lumineux Croix-Rousse", "650€", "Lyon 4e"},
		card{"Loft industriel Confluence", "1400 €", "Lyon 2e"},
	)
	conv, store := newTestConversation(t, a, b)

	in := strings.NewReader("/search\nLyon\n/stats\n/quit\n")
	var out bytes.Buffer
	require.NoError(t, runConsole(context.Background(), conv, in, &out, 42))

	text := out.String()
	assert.Contains(t, text, "Bienvenue")
	assert.Contains(t, text, "Tapez le nom de la ville")
	assert.Contains(t, text, "Studio lumineux Croix-Rousse")
	assert.Contains(t, text, "Appartement T2 Part-Dieu")
	assert.Contains(t, text, "Loft industriel Confluence")
	assert.Contains(t, text, "1400€/mois")
	assert.Contains(t, text, "Logements trouvés : \033[1m3\033[0m")
	assert.Contains(t, text, "Vos recherches       : 1")
	assert.Equal(t, 1, strings.Count(text, "Studio lumineux Croix-Rousse"), "duplicate across catalogs is shown once")

	n, err := store.CountUserSearches(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConsoleFilterAndAlerts(t *testing.T) {
	conv, store := newTestConversation(t, catalog(t))
	ctx := context.Background()

	in := strings.NewReader(strings.Join([]string{
		"/filter price_max",
		"abc",
		"1100",
		"/filter property_type",
		"maison",
		"/alerts",
		"lucie@example.fr",
		"/filter",
		"/unknown",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, runConsole(ctx, conv, in, &out, 7))

	text := out.String()
	assert.Contains(t, text, "Prix invalide")
	assert.Contains(t, text, "Prix maximum défini : 1100")
	assert.Contains(t, text, "Type de bien défini : Maison")
	assert.Contains(t, text, "Alertes activées pour : lucie@example.fr")
	assert.Contains(t, text, "Non défini - 1100€")
	assert.Contains(t, text, "Commande inconnue")

	prefs, err := store.Preferences(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, prefs.PriceMax)
	assert.Equal(t, 1100, *prefs.PriceMax)
	assert.Equal(t, "Maison", prefs.PropertyType)
	assert.Equal(t, "lucie@example.fr", prefs.Email)
}

func TestFreeTextWithoutSessionIsIgnored(t *testing.T) {
	conv, _ := newTestConversation(t, catalog(t))
	var out bytes.Buffer
	require.NoError(t, runConsole(context.Background(), conv, strings.NewReader("bonjour\n"), &out, 1))
	assert.Contains(t, out.String(), "Aucune action en cours")
}

func TestRenderReplyCoversEveryKind(t *testing.T) {
	for k := services.ReplyNoSession; k <= services.ReplyError; k++ {
		var out bytes.Buffer
		renderReply(&out, services.Reply{Kind: k, Step: models.StepAwaitingCity})
		assert.NotEmpty(t, out.String(), k.String())
	}
}
