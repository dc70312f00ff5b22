package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"rental-scout/models"
	"rental-scout/services"
)

// maxShown is how many listings are printed per search.
const maxShown = 5

var prompts = map[models.Step]string{
	models.StepAwaitingCity:         "🏙️ Tapez le nom de la ville où vous cherchez un logement :",
	models.StepAwaitingEmail:        "📧 Entrez votre email pour recevoir des alertes (ou 'off' pour désactiver) :",
	models.StepAwaitingPriceMin:     "💰 Entrez le prix minimum (€/mois) :",
	models.StepAwaitingPriceMax:     "💸 Entrez le prix maximum (€/mois) :",
	models.StepAwaitingSurfaceMin:   "📏 Entrez la surface minimum (m²) :",
	models.StepAwaitingSurfaceMax:   "📐 Entrez la surface maximum (m²) :",
	models.StepAwaitingPropertyType: "🏠 Choisissez le type de bien :",
}

var invalid = map[models.Step]string{
	models.StepAwaitingCity:         "❌ Nom de ville invalide. Veuillez entrer un nom valide :",
	models.StepAwaitingEmail:        "❌ Email invalide. Veuillez entrer un email valide :",
	models.StepAwaitingPriceMin:     "❌ Prix invalide. Entrez un nombre valide :",
	models.StepAwaitingPriceMax:     "❌ Prix invalide. Entrez un nombre valide :",
	models.StepAwaitingSurfaceMin:   "❌ Surface invalide. Entrez un nombre valide :",
	models.StepAwaitingSurfaceMax:   "❌ Surface invalide. Entrez un nombre valide :",
	models.StepAwaitingPropertyType: "❌ Type inconnu. Choisissez parmi la liste :",
}

var fieldLabels = map[models.PreferenceField]string{
	models.PrefPriceMin:     "Prix minimum",
	models.PrefPriceMax:     "Prix maximum",
	models.PrefSurfaceMin:   "Surface minimum",
	models.PrefSurfaceMax:   "Surface maximum",
	models.PrefPropertyType: "Type de bien",
}

func renderReply(w io.Writer, r services.Reply) {
	switch r.Kind {
	case services.ReplyNoSession:
		fmt.Fprintln(w, "  Aucune action en cours. Tapez /help pour la liste des commandes.")
	case services.ReplyWelcome:
		fmt.Fprintln(w, "\n\033[1;35m  🏠 Bienvenue sur Rental Scout\033[0m")
		fmt.Fprintln(w, "  👇 Choisissez une ville avec /city <ville> :")
		printOptions(w, r.Options)
	case services.ReplyPrompt:
		fmt.Fprintln(w, " ", prompts[r.Step])
		printOptions(w, r.Options)
	case services.ReplyInvalidInput:
		msg, ok := invalid[r.Step]
		if !ok {
			msg = "❌ Paramètre inconnu."
		}
		fmt.Fprintln(w, " ", msg)
		printOptions(w, r.Options)
	case services.ReplyPreferenceSaved:
		fmt.Fprintf(w, "  ✅ %s défini : %s\n", fieldLabels[r.Field], r.Value)
	case services.ReplyFilters:
		printFilters(w, r.Preferences)
	case services.ReplyFiltersReset:
		fmt.Fprintln(w, "  🗑️ Filtres réinitialisés !")
	case services.ReplyAlertsEnabled:
		fmt.Fprintf(w, "  ✅ Alertes activées pour : %s\n", r.Value)
	case services.ReplyAlertsDisabled:
		fmt.Fprintln(w, "  🔕 Alertes désactivées.")
	case services.ReplySearchCompleted:
		printListings(w, r.Location, r.Listings)
	case services.ReplySearchRejected:
		fmt.Fprintln(w, "  ⏳ Trop de recherches en cours, réessayez dans un instant.")
	case services.ReplyError:
		fmt.Fprintln(w, "  ❌ Une erreur s'est produite. Veuillez réessayer.")
	}
}

func printOptions(w io.Writer, options []string) {
	if len(options) == 0 {
		return
	}
	for i := 0; i < len(options); i += 2 {
		row := options[i:min(i+2, len(options))]
		fmt.Fprintf(w, "    %s\n", strings.Join(padAll(row, 18), ""))
	}
}

func padAll(items []string, width int) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%-*s", width, s)
	}
	return out
}

func printFilters(w io.Writer, p models.UserPreferences) {
	fmt.Fprintln(w, "\033[1;33m  🔧 Configuration actuelle\033[0m")
	fmt.Fprintf(w, "  💰 Prix    : %s - %s€\n", orUnset(p.PriceMin), orUnset(p.PriceMax))
	fmt.Fprintf(w, "  📏 Surface : %s - %sm²\n", orUnset(p.SurfaceMin), orUnset(p.SurfaceMax))
	pt := p.PropertyType
	if pt == "" {
		pt = "Tous types"
	}
	fmt.Fprintf(w, "  🏠 Type    : %s\n", pt)
	fmt.Fprintln(w, "  👇 /filter price_min | price_max | surface_min | surface_max | property_type, /reset")
}

func orUnset(v *int) string {
	if v == nil {
		return "Non défini"
	}
	return fmt.Sprint(*v)
}

func printListings(w io.Writer, city string, listings []models.ListingRecord) {
	if len(listings) == 0 {
		fmt.Fprintf(w, "  😕 Aucun logement trouvé à %s avec vos critères actuels.\n", city)
		fmt.Fprintln(w, "  💡 Modifiez vos filtres avec /filter ou essayez une ville voisine.")
		return
	}

	thin := strings.Repeat("─", 54)
	for i, l := range listings[:min(maxShown, len(listings))] {
		fmt.Fprintf(w, "\n  \033[1m%d. %s\033[0m\n", i+1, truncate(l.Title, 60))
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  💰 %s\n", l.Price)
		if l.Surface != "" {
			fmt.Fprintf(w, "  📏 %s\n", l.Surface)
		}
		if l.Location != "" {
			fmt.Fprintf(w, "  📍 %s\n", l.Location)
		}
		if l.Description != "" {
			fmt.Fprintf(w, "  📝 %s\n", truncate(l.Description, 120))
		}
		if l.URL != "" {
			fmt.Fprintf(w, "  🔗 %s\n", l.URL)
		}
		fmt.Fprintf(w, "  🌐 Source : %s\n", l.SourceID)
	}
	if len(listings) > maxShown {
		fmt.Fprintf(w, "\n  📄 Affichage des %d premiers résultats sur %d.\n", maxShown, len(listings))
	}
}

func printSummary(w io.Writer, city string, s models.SearchSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  ✅ Recherche terminée pour %s\033[0m\n", city)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Résultats\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Logements trouvés : \033[1m%d\033[0m\n", s.Count)
	if len(s.Sources) > 0 {
		fmt.Fprintf(w, "  Sources           : %s\n", strings.Join(s.Sources, ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Prix (€/mois)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if s.AveragePrice > 0 {
		fmt.Fprintf(w, "  Prix moyen   : \033[1;32m~%.0f€\033[0m\n", s.AveragePrice)
		fmt.Fprintf(w, "  Prix minimum : \033[1;32m%.0f€\033[0m\n", s.MinPrice)
		fmt.Fprintf(w, "  Prix maximum : \033[1;32m%.0f€\033[0m\n", s.MaxPrice)
	} else {
		fmt.Fprintf(w, "  Aucun prix disponible\n")
	}
	fmt.Fprintln(w)

	if len(s.ByLocation) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Par localisation\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		type locCount struct {
			loc   string
			count int
		}
		var locs []locCount
		for loc, cnt := range s.ByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		for _, lc := range locs {
			bar := strings.Repeat("█", lc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printStats(w io.Writer, s models.Stats) {
	fmt.Fprintln(w, "\033[1;33m  📊 Statistiques\033[0m")
	fmt.Fprintf(w, "  Vos recherches       : %d\n", s.UserSearches)
	fmt.Fprintf(w, "  Utilisateurs actifs  : %d\n", s.TotalUsers)
	fmt.Fprintf(w, "  Recherches totales   : %d\n", s.TotalSearches)
	fmt.Fprintf(w, "  Uptime               : %s\n", s.Uptime.Truncate(time.Second))
	fmt.Fprintf(w, "  Recherches en cours  : %d/%d\n", s.ActiveSearches, s.MaxConcurrent)
}

func printAlertReport(w io.Writer, r services.AlertReport) {
	fmt.Fprintf(w, "  Abonnés : %d | notifiés : %d | sans résultat : %d | échecs : %d\n",
		r.Subscribers, r.Notified, r.Empty, r.Failed)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
