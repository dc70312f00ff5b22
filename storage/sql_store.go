package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"rental-scout/models"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type dialect struct {
	driver string
	// nowMillis is the storage-side current time in unix milliseconds.
	nowMillis string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var dialects = map[string]dialect{
	DriverPostgres: {
		driver:    DriverPostgres,
		nowMillis: "CAST(EXTRACT(EPOCH FROM NOW()) * 1000 AS BIGINT)",
		numbered:  true,
	},
	DriverSQLite: {
		driver:    DriverSQLite,
		nowMillis: "CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)",
	},
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		chat_id       BIGINT  PRIMARY KEY,
		email         TEXT,
		location      TEXT,
		price_min     INTEGER,
		price_max     INTEGER,
		surface_min   INTEGER,
		surface_max   INTEGER,
		property_type TEXT,
		notifications INTEGER NOT NULL DEFAULT 1,
		created_at    BIGINT  NOT NULL,
		last_active   BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_sessions (
		chat_id    BIGINT PRIMARY KEY,
		step       TEXT   NOT NULL,
		payload    TEXT   NOT NULL DEFAULT '{}',
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_sessions_expires ON user_sessions(expires_at)`,
	`CREATE TABLE IF NOT EXISTS searches (
		id         TEXT    PRIMARY KEY,
		chat_id    BIGINT  NOT NULL,
		query      TEXT    NOT NULL,
		results    INTEGER NOT NULL,
		created_at BIGINT  NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_searches_chat ON searches(chat_id)`,
}

var preferenceColumns = map[models.PreferenceField]string{
	models.PrefPriceMin:     "price_min",
	models.PrefPriceMax:     "price_max",
	models.PrefSurfaceMin:   "surface_min",
	models.PrefSurfaceMax:   "surface_max",
	models.PrefPropertyType: "property_type",
	models.PrefLocation:     "location",
}

// SQLStore implements the session, search log and user repositories on top
// of PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects with the given driver, waits for the database to answer,
// runs schema migrations and returns a ready-to-use SQLStore.
func Open(driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	attempts := 1
	if driver == DriverPostgres {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping failed after retries: %w", err)
	}

	s := &SQLStore{db: db, dialect: d, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// --- sessions ---

func (s *SQLStore) UpsertSession(ctx context.Context, row SessionRow) error {
	_, err := s.exec(ctx, `
		INSERT INTO user_sessions (chat_id, step, payload, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			step = excluded.step,
			payload = excluded.payload,
			expires_at = excluded.expires_at`,
		row.ChatID, row.Step, string(row.Payload), row.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("storage: upsert session: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadSession(ctx context.Context, chatID int64) (SessionRow, bool, error) {
	var (
		row       = SessionRow{ChatID: chatID}
		payload   string
		expiresAt int64
	)
	err := s.queryRow(ctx,
		`SELECT step, payload, expires_at FROM user_sessions
		 WHERE chat_id = ? AND expires_at > `+s.dialect.nowMillis, chatID).
		Scan(&row.Step, &payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, false, nil
	}
	if err != nil {
		return SessionRow{}, false, fmt.Errorf("storage: load session: %w", err)
	}
	row.Payload = []byte(payload)
	row.ExpiresAt = time.UnixMilli(expiresAt)
	return row, true, nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, chatID int64) error {
	if _, err := s.exec(ctx, `DELETE FROM user_sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("storage: delete session: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM user_sessions WHERE expires_at <= `+s.dialect.nowMillis)
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- search log ---

func (s *SQLStore) AppendSearch(ctx context.Context, ev models.SearchEvent) error {
	_, err := s.exec(ctx,
		`INSERT INTO searches (id, chat_id, query, results, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.ChatID, ev.Query, ev.Results, ev.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("storage: append search: %w", err)
	}
	return nil
}

func (s *SQLStore) CountSearches(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM searches`)
}

func (s *SQLStore) CountUserSearches(ctx context.Context, chatID int64) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM searches WHERE chat_id = ?`, chatID)
}

// --- users ---

func (s *SQLStore) EnsureUser(ctx context.Context, chatID int64) error {
	now := s.now().UnixMilli()
	_, err := s.exec(ctx, `
		INSERT INTO users (chat_id, created_at, last_active) VALUES (?, ?, ?)
		ON CONFLICT (chat_id) DO NOTHING`, chatID, now, now)
	if err != nil {
		return fmt.Errorf("storage: ensure user: %w", err)
	}
	return nil
}

func (s *SQLStore) TouchUser(ctx context.Context, chatID int64) error {
	_, err := s.exec(ctx, `UPDATE users SET last_active = ? WHERE chat_id = ?`, s.now().UnixMilli(), chatID)
	if err != nil {
		return fmt.Errorf("storage: touch user: %w", err)
	}
	return nil
}

func (s *SQLStore) Preferences(ctx context.Context, chatID int64) (models.UserPreferences, error) {
	p, err := scanPreferences(s.queryRow(ctx, `
		SELECT chat_id, email, location, price_min, price_max, surface_min, surface_max,
		       property_type, notifications
		FROM users WHERE chat_id = ?`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserPreferences{ChatID: chatID}, nil
	}
	if err != nil {
		return models.UserPreferences{}, fmt.Errorf("storage: preferences: %w", err)
	}
	return p, nil
}

// SetPreference updates one preference column, creating the user if needed.
// value is an int, *int, string or nil (clears the column).
func (s *SQLStore) SetPreference(ctx context.Context, chatID int64, field models.PreferenceField, value any) error {
	col, ok := preferenceColumns[field]
	if !ok {
		return fmt.Errorf("storage: unknown preference %q", field)
	}
	if err := s.EnsureUser(ctx, chatID); err != nil {
		return err
	}
	if p, ok := value.(*int); ok {
		if p == nil {
			value = nil
		} else {
			value = *p
		}
	}
	if _, err := s.exec(ctx, `UPDATE users SET `+col+` = ? WHERE chat_id = ?`, value, chatID); err != nil {
		return fmt.Errorf("storage: set preference %s: %w", field, err)
	}
	return nil
}

func (s *SQLStore) ResetPreferences(ctx context.Context, chatID int64) error {
	_, err := s.exec(ctx, `
		UPDATE users SET price_min = NULL, price_max = NULL, surface_min = NULL,
		                 surface_max = NULL, property_type = NULL
		WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("storage: reset preferences: %w", err)
	}
	return nil
}

// SetAlerts stores the alert email. An empty email clears it.
func (s *SQLStore) SetAlerts(ctx context.Context, chatID int64, email string, enabled bool) error {
	if err := s.EnsureUser(ctx, chatID); err != nil {
		return err
	}
	var emailArg any
	if email != "" {
		emailArg = email
	}
	notifications := 0
	if enabled {
		notifications = 1
	}
	if _, err := s.exec(ctx, `UPDATE users SET email = ?, notifications = ? WHERE chat_id = ?`,
		emailArg, notifications, chatID); err != nil {
		return fmt.Errorf("storage: set alerts: %w", err)
	}
	return nil
}

func (s *SQLStore) Subscribers(ctx context.Context) ([]models.UserPreferences, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, email, location, price_min, price_max, surface_min, surface_max,
		       property_type, notifications
		FROM users
		WHERE notifications = 1 AND email IS NOT NULL
		ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: subscribers: %w", err)
	}
	defer rows.Close()

	var out []models.UserPreferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan subscriber: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *SQLStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row scanner) (models.UserPreferences, error) {
	var (
		p                                          models.UserPreferences
		email, location, propertyType              sql.NullString
		priceMin, priceMax, surfaceMin, surfaceMax sql.NullInt64
		notifications                              int64
	)
	if err := row.Scan(&p.ChatID, &email, &location, &priceMin, &priceMax,
		&surfaceMin, &surfaceMax, &propertyType, &notifications); err != nil {
		return models.UserPreferences{}, err
	}
	p.Email = email.String
	p.Location = location.String
	p.PropertyType = propertyType.String
	p.PriceMin = nullableInt(priceMin)
	p.PriceMax = nullableInt(priceMax)
	p.SurfaceMin = nullableInt(surfaceMin)
	p.SurfaceMax = nullableInt(surfaceMax)
	p.Notifications = notifications == 1
	return p, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
