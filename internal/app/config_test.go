package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaquote/thermaquote/internal/pricing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "0.15", cfg.TaxRate.String())
	assert.Equal(t, "2", cfg.LabourCostRate.String())
	assert.Equal(t, "60", cfg.TierMarkups[pricing.TierRetail].String())
	assert.Equal(t, "40", cfg.TierMarkups[pricing.TierTrade].String())
	assert.Equal(t, "25", cfg.TierMarkups[pricing.TierVIP].String())
	assert.Equal(t, 30, cfg.QuoteValidityDays)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PRICING_TIER_MARKUPS", "Retail:70,Trade:45")
	t.Setenv("PRICING_TAX_RATE", "0.1")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	d := cfg.PricingDefaults()
	assert.Equal(t, "70", d.TierMarkups[pricing.TierRetail].String())
	_, hasVIP := d.TierMarkups[pricing.TierVIP]
	assert.False(t, hasVIP)
	assert.Equal(t, "0.1", d.TaxRate.String())
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	cases := map[string][2]string{
		"tiers":    {"PRICING_TIER_MARKUPS", "Retail=60"},
		"tax":      {"PRICING_TAX_RATE", "1.5"},
		"validity": {"QUOTE_VALIDITY_DAYS", "0"},
		"decimal":  {"PRICING_LABOUR_COST_RATE", "cheap"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("quote", "Q-2610-0001"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"quote":"Q-2610-0001"`)
}
