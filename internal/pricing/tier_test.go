package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMarkup(t *testing.T) {
	table := DefaultTierMarkups()

	assert.Equal(t, "60", ResolveMarkup(TierRetail, dec("5"), table).String())
	assert.Equal(t, "40", ResolveMarkup(TierTrade, dec("5"), table).String())
	assert.Equal(t, "25", ResolveMarkup(TierVIP, dec("5"), table).String())
	assert.Equal(t, "5", ResolveMarkup(TierCustom, dec("5"), table).String())
	assert.Equal(t, "60", ResolveMarkup("Platinum", dec("5"), table).String())
	assert.Equal(t, "60", ResolveMarkup("Platinum", dec("5"), nil).String())
}

func TestDefaultTierMarkupsIsFresh(t *testing.T) {
	a := DefaultTierMarkups()
	a[TierRetail] = decimal.NewFromInt(1)

	assert.Equal(t, "60", DefaultTierMarkups()[TierRetail].String())
}

func TestParseTierMarkups(t *testing.T) {
	table, err := ParseTierMarkups("retail:65, Trade:42.5 ,VIP:30")
	require.NoError(t, err)
	assert.Equal(t, "65", table[TierRetail].String())
	assert.Equal(t, "42.5", table[TierTrade].String())
	assert.Equal(t, "30", table[TierVIP].String())

	_, err = ParseTierMarkups("Retail=60")
	assert.Error(t, err)
	_, err = ParseTierMarkups("Custom:10")
	assert.Error(t, err)
	_, err = ParseTierMarkups("Retail:abc")
	assert.Error(t, err)
	_, err = ParseTierMarkups(" ")
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierVIP, ParseTier(" vip "))
	assert.Equal(t, TierCustom, ParseTier("CUSTOM"))
	assert.Equal(t, Tier("Gold"), ParseTier("Gold"))
}

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"12.5":    "12.5",
		" 1,200 ": "1200",
		"":        "0",
		"abc":     "0",
		"12a":     "0",
		"-3":      "0",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDecimal(in).String(), "input %q", in)
	}
}

func TestDefaultsSettings(t *testing.T) {
	d := Defaults{TaxRate: dec("0.15"), LabourCostRate: dec("2")}
	s := d.Settings(TierTrade, decimal.Zero, dec("10"), dec("3"))

	assert.Equal(t, "40", s.Markup().String())
	assert.Equal(t, "2", s.LabourCostRate.String())
	assert.Equal(t, "0.15", s.TaxRate.String())
}
