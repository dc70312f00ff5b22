package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	Init(v)
	c := FromViper(v)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 15*time.Second, c.FetchTimeout)
	assert.Equal(t, 10, c.MaxResultsPerQuery)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, time.Second, c.RetryBaseDelay)
	assert.Equal(t, 3, c.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, c.SessionTTL)
	assert.Equal(t, 2, c.MaxSourcesPerSearch)
	assert.Len(t, c.Sources, 3)
	assert.Equal(t, c.SQLitePath, c.DSN())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("SOURCES", " https://a.example , ,https://b.example")

	v := viper.New()
	Init(v)
	c := FromViper(v)

	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, 90*time.Second, c.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Sources)
	assert.Equal(t, "host=db port=5432 user=scout password=scout123 dbname=rental_db sslmode=disable", c.DSN())
}
