package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaquote/thermaquote/internal/app"
	_ "github.com/thermaquote/thermaquote/testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCalcTable(t *testing.T) {
	out, err := execute(t, "calc", "--pack-price", "120", "--pack-size", "4.5", "--area", "20", "--description", "R3.6 batts")
	require.NoError(t, err)
	assert.Contains(t, out, "R3.6 batts")
	assert.Contains(t, out, "$960.00")
	assert.Contains(t, out, "Tier Retail, markup 60.0%")
	assert.Contains(t, out, "Total inc tax   $1,104.00")
	assert.NotContains(t, out, "Installation labour")
}

func TestCalcCustomWithLabourJSON(t *testing.T) {
	out, err := execute(t, "calc", "--tier", "custom", "--markup", "25",
		"--pack-price", "120", "--pack-size", "4.5", "--area", "20", "--labour", "--json")
	require.NoError(t, err)

	var res calcResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Lines, 2)
	assert.Equal(t, int64(5), res.Lines[0].PacksRequired)
	assert.Equal(t, "750", res.Lines[0].LineSell.String())
	assert.True(t, res.Lines[1].IsLabour)
	assert.Equal(t, "60", res.Lines[1].LineSell.String())
	assert.Equal(t, "810", res.Totals.TotalSellExTax.String())
	assert.Equal(t, "640", res.Totals.TotalCostExTax.String())
}

func TestCalcCustomNeedsMarkup(t *testing.T) {
	_, err := execute(t, "calc", "--tier", "Custom", "--pack-price", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--markup")
}

func TestImportCatalogDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	csv := "sku,description,pack_price,pack_size\nB1,Ceiling batts,120,4.5\nB2,,80,6\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	out, err := execute(t, "import-catalog", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Ceiling batts")
	assert.Contains(t, out, "row 3:")
	assert.Contains(t, out, "1 usable, 1 rejected")
}

func TestImportCatalogMissingFile(t *testing.T) {
	_, err := execute(t, "import-catalog", "--dry-run", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestJobsTriggerUnknown(t *testing.T) {
	_, err := execute(t, "jobs", "trigger", "reindex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job")
}

func TestMigrateList(t *testing.T) {
	out, err := execute(t, "migrate", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, ".sql")
}

func TestServeSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	_, err := execute(t, "serve")
	assert.NoError(t, err)
}
