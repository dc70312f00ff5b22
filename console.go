package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"rental-scout/models"
	"rental-scout/services"
)

const helpText = `  Commandes :
    /start              accueil et liste des villes
    /search             recherche par ville
    /city <ville>       recherche immédiate
    /filter [champ]     voir ou modifier un filtre (price_min, price_max,
                        surface_min, surface_max, property_type)
    /reset              réinitialiser les filtres
    /alerts             gérer les alertes email
    /stats              statistiques
    /quit               quitter`

// runConsole reads one event per line from in: lines starting with "/" are
// commands, anything else is free text for the current step.
func runConsole(ctx context.Context, conv *services.Conversation, in io.Reader, out io.Writer, chatID int64) error {
	scanner := bufio.NewScanner(in)
	renderReply(out, conv.Start(ctx, chatID))
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/"):
			handleCommand(ctx, conv, out, chatID, line)
		default:
			r := conv.OnFreeText(ctx, chatID, line)
			renderReply(out, r)
			if r.Kind == services.ReplySearchCompleted {
				printSummary(out, r.Location, r.Summary)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func handleCommand(ctx context.Context, conv *services.Conversation, out io.Writer, chatID int64, line string) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/start":
		renderReply(out, conv.Start(ctx, chatID))
	case "/search":
		renderReply(out, conv.BeginSearch(ctx, chatID))
	case "/city":
		r := conv.ChooseCity(ctx, chatID, arg)
		renderReply(out, r)
		if r.Kind == services.ReplySearchCompleted {
			printSummary(out, r.Location, r.Summary)
		}
	case "/filter":
		if arg == "" {
			renderReply(out, conv.Filters(ctx, chatID))
			return
		}
		renderReply(out, conv.BeginFilter(ctx, chatID, models.PreferenceField(arg)))
	case "/reset":
		renderReply(out, conv.ResetFilters(ctx, chatID))
	case "/alerts":
		renderReply(out, conv.BeginAlerts(ctx, chatID))
	case "/stats":
		stats, err := conv.Stats(ctx, chatID)
		if err != nil {
			fmt.Fprintln(out, "  ❌ Erreur lors de la récupération des statistiques.")
			return
		}
		printStats(out, stats)
	case "/help":
		fmt.Fprintln(out, helpText)
	default:
		fmt.Fprintf(out, "  Commande inconnue %q, tapez /help\n", name)
	}
}

// consoleNotifier delivers alerts by printing them.
type consoleNotifier struct {
	out io.Writer
}

func (n *consoleNotifier) Notify(_ context.Context, user models.UserPreferences, listings []models.ListingRecord) error {
	_, err := fmt.Fprintf(n.out, "  🚨 Alerte pour %s : %d nouveau(x) logement(s) correspondent à vos critères\n",
		user.Email, len(listings))
	return err
}
