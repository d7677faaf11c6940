package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://ai.local")

	cfg, err := readConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.Rate.Window)
	assert.Equal(t, "memory", cfg.Rate.Ledger)
	assert.Zero(t, cfg.Rate.LedgerTTL, "ledger must never expire by default")
	assert.Equal(t, 20, cfg.Validation.TextMinLength)
	assert.Equal(t, 5, cfg.Validation.TextMinWords)
	assert.Equal(t, 0.3, cfg.Validation.TextMinUniqueRatio)
	assert.False(t, cfg.usesRedis())
}

func TestReadConfig_RequiresUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	_, err := readConfig("")
	assert.ErrorContains(t, err, "UPSTREAM_URL")
}

func TestReadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upstream_url: http://from-file
listen_addr: ":9000"
rate:
  window: 30s
  ledger: redis
redis:
  addr: localhost:6379
validation:
  text_min_words: 8
upstream:
  rps: 2
`), 0o644))

	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("LISTEN_ADDR", ":9100")

	cfg, err := readConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file", cfg.UpstreamURL)
	assert.Equal(t, ":9100", cfg.ListenAddr, "env overrides file")
	assert.Equal(t, 30*time.Second, cfg.Rate.Window)
	assert.Equal(t, 8, cfg.Validation.TextMinWords)
	assert.Equal(t, 20, cfg.Validation.TextMinLength, "unset keys keep defaults")
	assert.Equal(t, 1, cfg.Upstream.Burst, "burst defaults to 1 when rps is set")
	assert.True(t, cfg.usesRedis())
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"redis ledger without addr": {"RATE_LEDGER": "redis"},
		"stats without addr":        {"RATE_STATS_ENABLED": "true"},
		"unknown ledger":            {"RATE_LEDGER": "postgres"},
		"ttl shorter than window":   {"RATE_LEDGER_TTL": "5s"},
		"ratio above one":           {"TEXT_MIN_UNIQUE_RATIO": "1.5"},
		"negative concurrency":      {"CONCURRENCY_MAX": "-1"},
		"unknown policy":            {"VALIDATION_POLICY": "strict"},
		"negative min length":       {"TEXT_MIN_LENGTH": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("UPSTREAM_URL", "http://ai.local")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig("")
			assert.Error(t, err)
		})
	}
}

func TestReadConfig_BadFile(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReadConfig_OverlaysWinOverEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("LISTEN_ADDR", ":9100")

	// sem overlay falta UPSTREAM_URL; o overlay roda antes da validação
	cfg, err := readConfig("", func(c *config) {
		c.UpstreamURL = "http://from-flag"
		c.ListenAddr = ":9200"
	})
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.UpstreamURL)
	assert.Equal(t, ":9200", cfg.ListenAddr)
}

func TestServeFlags_Overlay(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://from-env")

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--upstream", "http://from-flag"}))

	cfg, err := readConfig("", serveFlags(cmd))
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.UpstreamURL)
	assert.Equal(t, ":8080", cfg.ListenAddr, "empty --listen keeps the loaded value")
}

func TestReadConfig_VisitorFromBody(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://ai.local")

	cfg, err := readConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.VisitorFromBody)

	t.Setenv("TRUST_BODY_VISITOR_ID", "false")
	cfg, err = readConfig("")
	require.NoError(t, err)
	assert.False(t, cfg.VisitorFromBody)
}
