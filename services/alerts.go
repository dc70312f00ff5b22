package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rental-scout/models"
	"rental-scout/storage"
	"rental-scout/utils"
)

// DefaultAlertLocation is searched for subscribers with no stored location.
const DefaultAlertLocation = "Paris"

// Notifier delivers an alert to one subscriber.
type Notifier interface {
	Notify(ctx context.Context, user models.UserPreferences, listings []models.ListingRecord) error
}

// AlertReport summarizes one alert run.
type AlertReport struct {
	Subscribers int
	Notified    int
	Empty       int
	Failed      int
}

// AlertService searches on behalf of every alert subscriber and notifies
// those with results. Subscribers are processed one at a time with a pause
// between them.
type AlertService struct {
	users     storage.UserRepository
	searcher  Searcher
	notifier  Notifier
	rateLimit time.Duration
	logger    *utils.Logger
}

// NewAlertService creates an AlertService.
func NewAlertService(users storage.UserRepository, searcher Searcher, notifier Notifier, rateLimit time.Duration, logger *utils.Logger) *AlertService {
	return &AlertService{
		users:     users,
		searcher:  searcher,
		notifier:  notifier,
		rateLimit: rateLimit,
		logger:    logger.With("component", "alerts"),
	}
}

// Run performs one alert pass. Per-user failures are counted, not returned.
func (a *AlertService) Run(ctx context.Context) (AlertReport, error) {
	subs, err := a.users.Subscribers(ctx)
	if err != nil {
		return AlertReport{}, fmt.Errorf("alerts: load subscribers: %w", err)
	}

	var (
		mu     sync.Mutex
		report = AlertReport{Subscribers: len(subs)}
	)
	pool := utils.NewWorkerPool(1, a.rateLimit)
	for _, user := range subs {
		pool.Submit(func() {
			outcome := a.alertOne(ctx, user)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case alertNotified:
				report.Notified++
			case alertEmpty:
				report.Empty++
			default:
				report.Failed++
			}
		})
	}
	pool.Wait()

	a.logger.Info("alert run finished",
		"subscribers", report.Subscribers,
		"notified", report.Notified,
		"empty", report.Empty,
		"failed", report.Failed)
	return report, nil
}

type alertOutcome int

const (
	alertFailed alertOutcome = iota
	alertNotified
	alertEmpty
)

func (a *AlertService) alertOne(ctx context.Context, user models.UserPreferences) alertOutcome {
	if ctx.Err() != nil {
		return alertFailed
	}
	location := user.Location
	if location == "" {
		location = DefaultAlertLocation
	}

	listings, err := a.searcher.Search(ctx, location, user.Filter(location))
	if err != nil {
		a.logger.Error("alert search failed", err, "chat_id", user.ChatID, "location", location)
		return alertFailed
	}
	if len(listings) == 0 {
		return alertEmpty
	}
	if err := a.notifier.Notify(ctx, user, listings); err != nil {
		a.logger.Error("alert delivery failed", err, "chat_id", user.ChatID)
		return alertFailed
	}
	return alertNotified
}
