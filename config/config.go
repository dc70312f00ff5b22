package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBDriver   string
	SQLitePath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	Sources             []string
	MaxSourcesPerSearch int
	FetchTimeout        time.Duration
	MaxResultsPerQuery  int
	MaxRetries          int
	RetryBaseDelay      time.Duration
	MaxConcurrent       int
	SessionTTL          time.Duration

	FetchMode string
	ChromeBin string
	UserAgent string
	LogLevel  string

	CleanupInterval time.Duration
	AlertInterval   time.Duration
	AlertRateLimit  time.Duration

	CSVOutputPath string
}

var defaults = map[string]any{
	"DB_DRIVER":   "sqlite",
	"SQLITE_PATH": "./data/bot_data.db",

	"POSTGRES_HOST":     "localhost",
	"POSTGRES_PORT":     "5432",
	"POSTGRES_USER":     "scout",
	"POSTGRES_PASSWORD": "scout123",
	"POSTGRES_DB":       "rental_db",
	"POSTGRES_SSLMODE":  "disable",

	"SOURCES":                 "https://www.leboncoin.fr,https://www.seloger.com,https://www.pap.fr",
	"MAX_SOURCES_PER_SEARCH":  2,
	"FETCH_TIMEOUT":           15 * time.Second,
	"MAX_RESULTS_PER_QUERY":   10,
	"MAX_RETRIES":             3,
	"RETRY_BASE_DELAY":        time.Second,
	"MAX_CONCURRENT_SEARCHES": 3,
	"SESSION_TTL":             5 * time.Minute,

	"FETCH_MODE": "http",
	"CHROME_BIN": "",
	"USER_AGENT": "",
	"LOG_LEVEL":  "info",

	"CLEANUP_INTERVAL": 24 * time.Hour,
	"ALERT_INTERVAL":   7 * 24 * time.Hour,
	"ALERT_RATE_LIMIT": 2 * time.Second,

	"CSV_OUTPUT_PATH": "./output/listings.csv",
}

// Init loads .env and registers defaults on v. Environment variables
// override defaults; flags bound to v override both.
func Init(v *viper.Viper) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
}

// FromViper builds a Config from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		SQLitePath: v.GetString("SQLITE_PATH"),

		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetString("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		Sources:             splitList(v.GetString("SOURCES")),
		MaxSourcesPerSearch: v.GetInt("MAX_SOURCES_PER_SEARCH"),
		FetchTimeout:        v.GetDuration("FETCH_TIMEOUT"),
		MaxResultsPerQuery:  v.GetInt("MAX_RESULTS_PER_QUERY"),
		MaxRetries:          v.GetInt("MAX_RETRIES"),
		RetryBaseDelay:      v.GetDuration("RETRY_BASE_DELAY"),
		MaxConcurrent:       v.GetInt("MAX_CONCURRENT_SEARCHES"),
		SessionTTL:          v.GetDuration("SESSION_TTL"),

		FetchMode: strings.ToLower(v.GetString("FETCH_MODE")),
		ChromeBin: v.GetString("CHROME_BIN"),
		UserAgent: v.GetString("USER_AGENT"),
		LogLevel:  v.GetString("LOG_LEVEL"),

		CleanupInterval: v.GetDuration("CLEANUP_INTERVAL"),
		AlertInterval:   v.GetDuration("ALERT_INTERVAL"),
		AlertRateLimit:  v.GetDuration("ALERT_RATE_LIMIT"),

		CSVOutputPath: v.GetString("CSV_OUTPUT_PATH"),
	}
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
