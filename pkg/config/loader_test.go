package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
postgres:
  host: db
  user: shop
  password: "p@ss word"
  name: shop
redis:
  addr: redis:6379
bots:
  - business_id: 4
    token: "123:abc"
`

func readSample(t *testing.T, raw string) *viper.Viper {
	t.Helper()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(raw)))
	return v
}

func TestDecodeAppliesDefaults(t *testing.T) {
	cfg, err := decode(readSample(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.App.SupportSessionTTL)
	assert.Equal(t, "en", cfg.App.DefaultLanguage)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	require.Len(t, cfg.Bots, 1)
	assert.Equal(t, int64(4), cfg.Bots[0].BusinessID)

	assert.Equal(t, "host=db port=5432 user=shop password=p@ss word dbname=shop sslmode=disable", cfg.PostgresDSN())
	assert.Equal(t, "postgres://shop:p%40ss%20word@db:5432/shop?sslmode=disable", cfg.PostgresURL())
}

func TestDecodeRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "no bots", raw: "postgres:\n  host: db\n  user: u\n  name: n\n"},
		{name: "bad language", raw: sampleYAML + "app:\n  default_language: fr\n"},
		{name: "sentry without dsn", raw: sampleYAML + "sentry:\n  enabled: true\n"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode(readSample(t, tc.raw))
			assert.Error(t, err)
		})
	}
}
