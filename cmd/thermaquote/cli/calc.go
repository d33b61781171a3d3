package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thermaquote/thermaquote/internal/pricing"
	"github.com/thermaquote/thermaquote/internal/quotes"
)

type calcOptions struct {
	tier           string
	markup         string
	waste          string
	labourRate     string
	labourCostRate string
	taxRate        string
	packPrice      string
	packSize       string
	area           string
	description    string
	withLabour     bool
	currency       string
	locale         string
	asJSON         bool
}

type calcResult struct {
	Lines  []pricing.LineItem `json:"lines"`
	Totals pricing.Totals     `json:"totals"`
}

func newCalcCommand() *cobra.Command {
	var opts calcOptions
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Price a single product line offline",
		Long: `Price one product line with the same calculator the API uses.

Examples:
  thermaquote calc --pack-price 120 --pack-size 4.5 --area 20
  thermaquote calc --tier Custom --markup 25 --pack-price 120 --pack-size 4.5 --area 20 --labour --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalc(cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.tier, "tier", string(pricing.TierRetail), "pricing tier (Retail, Trade, VIP, Custom)")
	f.StringVar(&opts.markup, "markup", "", "markup percent for the Custom tier")
	f.StringVar(&opts.waste, "waste", "10", "waste percent")
	f.StringVar(&opts.labourRate, "labour-rate", "3.00", "labour sell rate per m2")
	f.StringVar(&opts.labourCostRate, "labour-cost-rate", "2.00", "labour cost rate per m2")
	f.StringVar(&opts.taxRate, "tax", "0.15", "tax rate as a fraction")
	f.StringVar(&opts.packPrice, "pack-price", "0", "price of one pack")
	f.StringVar(&opts.packSize, "pack-size", "1", "area covered by one pack in m2")
	f.StringVar(&opts.area, "area", "0", "area to cover in m2")
	f.StringVar(&opts.description, "description", "Product", "line description")
	f.BoolVar(&opts.withLabour, "labour", false, "add the matching installation labour line")
	f.StringVar(&opts.currency, "currency", "NZD", "ISO currency code for display")
	f.StringVar(&opts.locale, "locale", "en-NZ", "locale for number formatting")
	f.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func runCalc(out io.Writer, opts calcOptions) error {
	tier := pricing.ParseTier(opts.tier)
	if tier == pricing.TierCustom && opts.markup == "" {
		return fmt.Errorf("--markup is required for the %s tier", pricing.TierCustom)
	}
	settings := pricing.Defaults{
		TierMarkups:    pricing.DefaultTierMarkups(),
		TaxRate:        pricing.ParseDecimal(opts.taxRate),
		LabourCostRate: pricing.ParseDecimal(opts.labourCostRate),
	}.Settings(tier, pricing.ParseDecimal(opts.markup), pricing.ParseDecimal(opts.waste), pricing.ParseDecimal(opts.labourRate))

	product := pricing.Product{
		ID:          1,
		Description: opts.description,
		PackPrice:   pricing.ParseDecimal(opts.packPrice),
		PackSize:    pricing.ParseDecimal(opts.packSize),
	}
	lines := pricing.SelectProduct([]pricing.LineItem{{Area: pricing.ParseDecimal(opts.area)}}, 0, product, settings)
	if !opts.withLabour && len(lines) > 1 {
		lines = lines[:1]
	}
	res := calcResult{Lines: lines, Totals: pricing.Summarize(lines, settings.TaxRate)}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	money := quotes.NewMoney(opts.locale, opts.currency)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTION\tAREA\tPACKS\tCOST\tSELL\tMARGIN")
	for _, l := range res.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", l.Description, l.Area.String(), l.PacksRequired,
			money.Format(l.LineCost), money.Format(l.LineSell), money.Percent(l.MarginPercent))
	}
	_ = tw.Flush()

	t := res.Totals
	fmt.Fprintf(out, "\nTier %s, markup %s\n", settings.Tier, money.Percent(settings.Markup()))
	fmt.Fprintf(out, "Total cost      %s\n", money.Format(t.TotalCostExTax))
	fmt.Fprintf(out, "Total sell      %s\n", money.Format(t.TotalSellExTax))
	fmt.Fprintf(out, "Tax             %s\n", money.Format(t.TaxAmount))
	fmt.Fprintf(out, "Total inc tax   %s\n", money.Format(t.TotalIncTax))
	fmt.Fprintf(out, "Gross profit    %s (%s)\n", money.Format(t.GrossProfit), money.Percent(t.GrossProfitPercent))
	return nil
}
