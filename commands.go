package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rental-scout/models"
	"rental-scout/services"
	"rental-scout/storage"
)

func newSearchCmd() *cobra.Command {
	var (
		priceMin, priceMax     int
		surfaceMin, surfaceMax int
		propertyType           string
		writeCSV               bool
		chatID                 int64
	)

	cmd := &cobra.Command{
		Use:   "search <city>",
		Short: "Run one search and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			city := strings.Join(args, " ")
			filter := models.SearchFilter{Location: city, PropertyType: propertyType}
			flags := cmd.Flags()
			if flags.Changed("price-min") {
				filter.PriceMin = models.IntPtr(priceMin)
			}
			if flags.Changed("price-max") {
				filter.PriceMax = models.IntPtr(priceMax)
			}
			if flags.Changed("surface-min") {
				filter.SurfaceMin = models.IntPtr(surfaceMin)
			}
			if flags.Changed("surface-max") {
				filter.SurfaceMax = models.IntPtr(surfaceMax)
			}

			r := a.conversation.OnSearchRequest(cmd.Context(), chatID, city, filter)
			out := cmd.OutOrStdout()
			renderReply(out, r)

			if r.Kind != services.ReplySearchCompleted {
				return r.Err
			}
			printSummary(out, r.Location, r.Summary)

			if writeCSV {
				if err := exportCSV(a.cfg.CSVOutputPath, r.Listings); err != nil {
					a.logger.Error("CSV write failed", err)
					return err
				}
				a.logger.Info("listings saved", "path", a.cfg.CSVOutputPath, "count", len(r.Listings))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&priceMin, "price-min", 0, "minimum monthly rent")
	f.IntVar(&priceMax, "price-max", 0, "maximum monthly rent")
	f.IntVar(&surfaceMin, "surface-min", 0, "minimum surface in m²")
	f.IntVar(&surfaceMax, "surface-max", 0, "maximum surface in m²")
	f.StringVar(&propertyType, "type", "", "property type (Appartement, Maison, Studio, Loft, Chambre)")
	f.BoolVar(&writeCSV, "csv", false, "also write results to CSV_OUTPUT_PATH")
	f.Int64Var(&chatID, "chat-id", 1, "identity the search is logged under")
	return cmd
}

func exportCSV(path string, listings []models.ListingRecord) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	return writeAndClose(w, listings)
}

func writeAndClose(w storage.ListingWriter, listings []models.ListingRecord) error {
	if err := w.WriteListings(listings); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func newChatCmd() *cobra.Command {
	var chatID int64

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent on the console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return runConsole(cmd.Context(), a.conversation, cmd.InOrStdin(), cmd.OutOrStdout(), chatID)
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat-id", 1, "conversation identity")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired conversation sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.sessions.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %d expired session(s) removed\n", n)
			return nil
		},
	}
}

func newAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Run one alert pass for every subscriber",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.alertService(cmd.OutOrStdout()).Run(cmd.Context())
			if err != nil {
				return err
			}
			printAlertReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var console bool
	var chatID int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic cleanup and alert jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			g, ctx := errgroup.WithContext(cmd.Context())
			out := cmd.OutOrStdout()
			alerts := a.alertService(out)

			g.Go(func() error {
				every(ctx, a.cfg.CleanupInterval, func() {
					if _, err := a.sessions.PurgeExpired(ctx); err != nil {
						a.logger.Error("session cleanup failed", err)
					}
					a.logStats(ctx)
				})
				return nil
			})
			g.Go(func() error {
				every(ctx, a.cfg.AlertInterval, func() {
					if _, err := alerts.Run(ctx); err != nil {
						a.logger.Error("alert run failed", err)
					}
				})
				return nil
			})
			if console {
				g.Go(func() error {
					return runConsole(ctx, a.conversation, cmd.InOrStdin(), out, chatID)
				})
			}

			a.logger.Info("jobs scheduled",
				"cleanup_every", a.cfg.CleanupInterval,
				"alerts_every", a.cfg.AlertInterval)
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&console, "console", false, "also read chat input from stdin")
	cmd.Flags().Int64Var(&chatID, "chat-id", 1, "console conversation identity")
	return cmd
}

// every runs fn each interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

func (a *app) alertService(out io.Writer) *services.AlertService {
	return services.NewAlertService(a.store, a.coordinator, &consoleNotifier{out: out}, a.cfg.AlertRateLimit, a.logger)
}

func (a *app) logStats(ctx context.Context) {
	users, err := a.store.CountUsers(ctx)
	if err != nil {
		a.logger.Error("stats update failed", err)
		return
	}
	searches, err := a.store.CountSearches(ctx)
	if err != nil {
		a.logger.Error("stats update failed", err)
		return
	}
	a.logger.Info("stats updated", "users", users, "searches", searches)
}
