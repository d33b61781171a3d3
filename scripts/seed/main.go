package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/app"
	"github.com/thermaquote/thermaquote/internal/auth"
	"github.com/thermaquote/thermaquote/internal/crm/companies"
	"github.com/thermaquote/thermaquote/internal/crm/opportunities"
	"github.com/thermaquote/thermaquote/internal/platform/db"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/quotes"
)

const demoCatalog = `sku,description,cost_price,pack_price,pack_size,waste_percent,application_type,is_labour
CB-R36,R3.6 ceiling batts 430mm,95,120,4.5,10,Ceiling,no
CB-R50,R5.0 ceiling batts 580mm,128,165,3.4,10,Ceiling,no
WB-R26,R2.6 wall batts 90mm,62,80,6,5,Walls,no
UF-R14,R1.4 underfloor blanket,88,110,8,10,Underfloor,no
LAB-STD,Standard installation labour,2,3,1,0,,yes
`

var pricingArea = decimal.NewFromInt(85)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	services := app.BuildServices(cfg, pool, nil, nil, logger)

	fmt.Println("→ Seeding admin user...")
	if err := seedAdmin(ctx, services); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	fmt.Println("→ Seeding catalog...")
	result, err := services.Catalog.Import(ctx, "seed.csv", strings.NewReader(demoCatalog))
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	fmt.Printf("  %d created, %d updated\n", result.Created, result.Updated)

	fmt.Println("→ Seeding demo pipeline...")
	if err := seedPipeline(ctx, services); err != nil {
		log.Fatalf("seed pipeline: %v", err)
	}

	fmt.Println("✓ Seed complete")
}

func seedAdmin(ctx context.Context, services *app.Services) error {
	password := getenv("SEED_ADMIN_PASSWORD", "thermaquote-admin")
	_, err := services.Auth.CreateUser(ctx, auth.NewUser{
		Email:    getenv("SEED_ADMIN_EMAIL", "admin@thermaquote.local"),
		FullName: "Administrator",
		Password: password,
	})
	if errors.Is(err, httpx.ErrDuplicate) {
		fmt.Println("  admin already present")
		return nil
	}
	return err
}

func seedPipeline(ctx context.Context, services *app.Services) error {
	const companyName = "Harbour View Homes"
	existing, _, err := services.Companies.List(ctx, companies.ListFilters{Search: companyName, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Println("  demo company already present")
		return nil
	}

	company, err := services.Companies.Create(ctx, companies.CompanyRequest{
		Name:    companyName,
		Email:   "build@harbourview.example",
		Address: "12 Wharf Rd, Auckland",
	})
	if err != nil {
		return err
	}
	opp, err := services.Opportunities.Create(ctx, opportunities.OpportunityRequest{
		Title:     "Wharf Rd retrofit",
		CompanyID: &company.ID,
		Stage:     string(opportunities.StageSiteVisit),
	})
	if err != nil {
		return err
	}

	picker, err := services.Catalog.Picker(ctx)
	if err != nil {
		return err
	}
	var lines []quotes.LineRequest
	for _, p := range picker {
		if p.SKU == "CB-R36" {
			id := p.ID
			lines = append(lines, quotes.LineRequest{ProductID: &id, Area: quotes.NewAmount(pricingArea)})
		}
	}
	lines = append(lines, quotes.LineRequest{IsLabour: true, Description: "Installation labour", Area: quotes.NewAmount(pricingArea)})

	q, _, err := services.Quotes.Create(ctx, quotes.QuoteRequest{
		CompanyID:     &company.ID,
		OpportunityID: &opp.ID,
		ClientName:    company.Name,
		SiteAddress:   company.Address,
		PricingTier:   "Retail",
		Sections: []quotes.SectionRequest{
			{Name: "Ceiling", Color: "#0ea5e9", Lines: lines},
		},
	}, "seed-demo-quote", 0)
	if err != nil {
		return err
	}
	fmt.Printf("  draft quote %s total %s\n", q.DocNumber, q.Totals.TotalIncTax.StringFixed(2))
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
