package storage

import (
	"context"
	"time"

	"rental-scout/models"
)

// SessionRow is the persisted form of a conversation session.
type SessionRow struct {
	ChatID    int64
	Step      string
	Payload   []byte
	ExpiresAt time.Time
}

// SessionRepository persists one session row per conversation identity.
type SessionRepository interface {
	UpsertSession(ctx context.Context, row SessionRow) error
	// LoadSession returns the row only if it has not expired according to the
	// storage's own clock.
	LoadSession(ctx context.Context, chatID int64) (SessionRow, bool, error)
	DeleteSession(ctx context.Context, chatID int64) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SearchLog is the append-only log of searches, read only for reporting.
type SearchLog interface {
	AppendSearch(ctx context.Context, ev models.SearchEvent) error
	CountSearches(ctx context.Context) (int64, error)
	CountUserSearches(ctx context.Context, chatID int64) (int64, error)
}

// UserRepository stores per-user search preferences and alert settings.
type UserRepository interface {
	EnsureUser(ctx context.Context, chatID int64) error
	TouchUser(ctx context.Context, chatID int64) error
	Preferences(ctx context.Context, chatID int64) (models.UserPreferences, error)
	SetPreference(ctx context.Context, chatID int64, field models.PreferenceField, value any) error
	ResetPreferences(ctx context.Context, chatID int64) error
	SetAlerts(ctx context.Context, chatID int64, email string, enabled bool) error
	Subscribers(ctx context.Context) ([]models.UserPreferences, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ListingWriter is the interface for exporting search results.
type ListingWriter interface {
	WriteListings(listings []models.ListingRecord) error
	Close() error
}
