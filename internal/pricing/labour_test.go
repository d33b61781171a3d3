package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveLabourLineSkips(t *testing.T) {
	s := baseSettings()
	id := int64(3)

	cases := map[string]LineItem{
		"zero area":  {ProductID: &id, Area: dec("0")},
		"no product": {Area: dec("10")},
		"labour":     {Area: dec("10"), IsLabour: true},
	}
	for name, line := range cases {
		_, ok := DeriveLabourLine(line, s)
		assert.False(t, ok, name)
	}
}

func TestSelectProductInsertsLabourAfterLine(t *testing.T) {
	p := batts()
	s := baseSettings()
	lines := []LineItem{
		{Description: "first", Area: dec("10")},
		{Description: "second", LineCost: dec("1"), LineSell: dec("2")},
	}

	got := SelectProduct(lines, 0, p, s)

	require.Len(t, got, 3)
	require.NotNil(t, got[0].ProductID)
	assert.Equal(t, p.ID, *got[0].ProductID)
	assert.Equal(t, p.Description, got[0].Description)
	assert.True(t, got[1].IsLabour)
	assert.Equal(t, "Installation labour: R3.2 ceiling batts", got[1].Description)
	assert.Equal(t, "second", got[2].Description)
	assert.Len(t, lines, 2, "input untouched")
	assert.Nil(t, lines[0].ProductID)
}

func TestSelectProductReplacesAdjacentLabour(t *testing.T) {
	p := batts()
	s := baseSettings()
	got := SelectProduct([]LineItem{{Area: dec("10")}}, 0, p, s)
	got[0].Area = dec("20")

	again := SelectProduct(got, 0, p, s)

	require.Len(t, again, 2)
	assert.Equal(t, "60.00", again[1].LineSell.StringFixed(2))
}

func TestSelectProductOnLabourLineDoesNotSpawn(t *testing.T) {
	s := baseSettings()
	lines := []LineItem{{Description: "labour", Area: dec("8"), IsLabour: true}}

	got := SelectProduct(lines, 0, batts(), s)

	require.Len(t, got, 1)
	assert.True(t, got[0].IsLabour)
	assert.Nil(t, got[0].ProductID)
	assert.Equal(t, "24.00", got[0].LineSell.StringFixed(2))
}

func TestSelectProductZeroAreaNoLabour(t *testing.T) {
	got := SelectProduct([]LineItem{{}}, 0, batts(), baseSettings())
	assert.Len(t, got, 1)
}

func TestSelectProductOutOfRange(t *testing.T) {
	got := SelectProduct([]LineItem{{}}, 4, batts(), baseSettings())
	assert.Len(t, got, 1)
	assert.Nil(t, got[0].ProductID)
}
