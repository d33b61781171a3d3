package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thermaquote/thermaquote/internal/platform/db"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/pricing"
)

// Repository persists quotes.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters ListFilters) ([]Quote, int, error)
	// Get loads the header only; Sections loads the tree.
	Get(ctx context.Context, id int64) (Quote, error)
	GetByShareToken(ctx context.Context, token string) (Quote, error)
	Sections(ctx context.Context, quoteID int64) ([]Section, error)
	Create(ctx context.Context, q Quote) (int64, error)
	UpdateHeader(ctx context.Context, q Quote) error
	// ReplaceSections deletes the stored tree and inserts sections in order.
	ReplaceSections(ctx context.Context, quoteID int64, sections []Section) error
	UpdateStatus(ctx context.Context, id int64, status Status, validUntil time.Time) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
	// ExpireOverdue marks sent quotes past their validity as expired.
	ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository builds a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectQuote = `SELECT q.id, q.doc_number, q.share_token::text, q.company_id, COALESCE(co.name, ''),
	q.contact_id, COALESCE(TRIM(ct.first_name || ' ' || ct.last_name), ''), q.opportunity_id,
	q.client_name, q.site_address, q.status, q.valid_until, q.pricing_tier,
	q.markup_percent, q.waste_percent, q.labour_rate,
	q.total_cost_ex_tax, q.total_sell_ex_tax, q.tax_amount, q.total_inc_tax, q.gross_profit, q.gross_profit_percent,
	COALESCE(q.notes, ''), q.created_by, q.created_at, q.updated_at
	FROM quotes q
	LEFT JOIN companies co ON co.id = q.company_id
	LEFT JOIN contacts ct ON ct.id = q.contact_id`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Quote, int, error) {
	var conditions []string
	var args []any
	if s := strings.TrimSpace(filters.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("(q.doc_number ILIKE $%[1]d OR q.client_name ILIKE $%[1]d OR q.site_address ILIKE $%[1]d)", len(args)))
	}
	if filters.Status != nil {
		args = append(args, string(*filters.Status))
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", len(args)))
	}
	if filters.CompanyID != nil {
		args = append(args, *filters.CompanyID)
		conditions = append(conditions, fmt.Sprintf("q.company_id = $%d", len(args)))
	}
	if filters.OpportunityID != nil {
		args = append(args, *filters.OpportunityID)
		conditions = append(conditions, fmt.Sprintf("q.opportunity_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes q"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quotes: %w", err)
	}
	query := selectQuote + where + " ORDER BY q.created_at DESC, q.id DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filters.Limit, filters.Offset)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list quotes: %w", err)
	}
	quotes, err := pgx.CollectRows(rows, scanQuote)
	if err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Quote, error) {
	rows, err := r.db.Query(ctx, selectQuote+" WHERE q.id = $1", id)
	if err != nil {
		return Quote{}, err
	}
	q, err := pgx.CollectOneRow(rows, scanQuote)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, fmt.Errorf("quote %d: %w", id, httpx.ErrNotFound)
	}
	return q, err
}

func (r *repository) GetByShareToken(ctx context.Context, token string) (Quote, error) {
	rows, err := r.db.Query(ctx, selectQuote+" WHERE q.share_token::text = $1", token)
	if err != nil {
		return Quote{}, err
	}
	q, err := pgx.CollectOneRow(rows, scanQuote)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, fmt.Errorf("shared quote: %w", httpx.ErrNotFound)
	}
	return q, err
}

func (r *repository) Sections(ctx context.Context, quoteID int64) ([]Section, error) {
	rows, err := r.db.Query(ctx, `SELECT id, quote_id, name, application_type_id, color, sort_order
		FROM quote_sections WHERE quote_id = $1 ORDER BY sort_order, id`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	sections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Section, error) {
		var (
			s       Section
			appType pgtype.Int8
		)
		err := row.Scan(&s.ID, &s.QuoteID, &s.Name, &appType, &s.Color, &s.SortOrder)
		s.ApplicationTypeID = db.Int8Ptr(appType)
		s.Lines = []LineItem{}
		return s, err
	})
	if err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `SELECT l.id, l.section_id, l.product_id, l.description, l.area, l.packs_required,
		l.line_cost, l.line_sell, l.margin_percent, l.is_labour, l.sort_order
		FROM quote_line_items l JOIN quote_sections s ON s.id = l.section_id
		WHERE s.quote_id = $1 ORDER BY l.sort_order, l.id`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("load lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]int, len(sections))
	for i, s := range sections {
		index[s.ID] = i
	}
	for _, l := range lines {
		if i, ok := index[l.SectionID]; ok {
			sections[i].Lines = append(sections[i].Lines, l)
		}
	}
	return sections, nil
}

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quotes
		(doc_number, share_token, company_id, contact_id, opportunity_id, client_name, site_address, status,
		 valid_until, pricing_tier, markup_percent, waste_percent, labour_rate,
		 total_cost_ex_tax, total_sell_ex_tax, tax_amount, total_inc_tax, gross_profit, gross_profit_percent,
		 notes, created_by)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NULLIF($20, ''), $21)
		RETURNING id`,
		q.DocNumber, q.ShareToken, db.NullInt8(q.CompanyID), db.NullInt8(q.ContactID), db.NullInt8(q.OpportunityID),
		q.ClientName, q.SiteAddress, string(q.Status), pgtype.Date{Time: q.ValidUntil, Valid: true}, string(q.PricingTier),
		db.Numeric(q.MarkupPercent), db.Numeric(q.WastePercent), db.Numeric(q.LabourRate),
		db.Numeric(q.Totals.TotalCostExTax), db.Numeric(q.Totals.TotalSellExTax), db.Numeric(q.Totals.TaxAmount),
		db.Numeric(q.Totals.TotalIncTax), db.Numeric(q.Totals.GrossProfit), db.Numeric(q.Totals.GrossProfitPercent),
		q.Notes, q.CreatedBy,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("quote %s: %w", q.DocNumber, httpx.ErrDuplicate)
	}
	return id, err
}

func (r *repository) UpdateHeader(ctx context.Context, q Quote) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET
		company_id = $2, contact_id = $3, opportunity_id = $4, client_name = $5, site_address = $6,
		valid_until = $7, pricing_tier = $8, markup_percent = $9, waste_percent = $10, labour_rate = $11,
		total_cost_ex_tax = $12, total_sell_ex_tax = $13, tax_amount = $14, total_inc_tax = $15,
		gross_profit = $16, gross_profit_percent = $17, notes = NULLIF($18, ''), updated_at = NOW()
		WHERE id = $1`,
		q.ID, db.NullInt8(q.CompanyID), db.NullInt8(q.ContactID), db.NullInt8(q.OpportunityID),
		q.ClientName, q.SiteAddress, pgtype.Date{Time: q.ValidUntil, Valid: true}, string(q.PricingTier),
		db.Numeric(q.MarkupPercent), db.Numeric(q.WastePercent), db.Numeric(q.LabourRate),
		db.Numeric(q.Totals.TotalCostExTax), db.Numeric(q.Totals.TotalSellExTax), db.Numeric(q.Totals.TaxAmount),
		db.Numeric(q.Totals.TotalIncTax), db.Numeric(q.Totals.GrossProfit), db.Numeric(q.Totals.GrossProfitPercent),
		q.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d: %w", q.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) ReplaceSections(ctx context.Context, quoteID int64, sections []Section) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM quote_sections WHERE quote_id = $1`, quoteID); err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}
	for i, s := range sections {
		var sectionID int64
		err := r.db.QueryRow(ctx, `INSERT INTO quote_sections (quote_id, name, application_type_id, color, sort_order)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			quoteID, s.Name, db.NullInt8(s.ApplicationTypeID), s.Color, i).Scan(&sectionID)
		if err != nil {
			return fmt.Errorf("insert section %d: %w", i, err)
		}
		for j, l := range s.Lines {
			_, err := r.db.Exec(ctx, `INSERT INTO quote_line_items
				(section_id, product_id, description, area, packs_required, line_cost, line_sell, margin_percent, is_labour, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				sectionID, db.NullInt8(l.ProductID), l.Description, db.Numeric(l.Area), l.PacksRequired,
				db.Numeric(l.LineCost), db.Numeric(l.LineSell), db.Numeric(l.MarginPercent), l.IsLabour, j)
			if err != nil {
				return fmt.Errorf("insert line %d.%d: %w", i, j, err)
			}
		}
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, validUntil time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $2, valid_until = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), pgtype.Date{Time: validUntil, Valid: true})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	// Q-{YY}{MM}-{SEQ}
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "Q", date.Format("200601")).Scan(&seq)
	if err != nil {
		return "", err
	}
	return FormatNumber(date, seq), nil
}

func (r *repository) ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE status = $2 AND valid_until < $3 RETURNING id`,
		string(StatusExpired), string(StatusSent), pgtype.Date{Time: asOf, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("expire quotes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// FormatNumber renders a quote number such as Q-2610-0007.
func FormatNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("Q-%s-%04d", date.Format("0601"), seq)
}

func scanQuote(row pgx.CollectableRow) (Quote, error) {
	var (
		q                                           Quote
		companyID, contactID, opportunityID         pgtype.Int8
		status, tier                                string
		validUntil                                  pgtype.Date
		markup, waste, labour                       pgtype.Numeric
		cost, sell, tax, incTax, profit, profitPerc pgtype.Numeric
	)
	err := row.Scan(&q.ID, &q.DocNumber, &q.ShareToken, &companyID, &q.CompanyName, &contactID, &q.ContactName,
		&opportunityID, &q.ClientName, &q.SiteAddress, &status, &validUntil, &tier,
		&markup, &waste, &labour, &cost, &sell, &tax, &incTax, &profit, &profitPerc,
		&q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Quote{}, err
	}
	q.CompanyID = db.Int8Ptr(companyID)
	q.ContactID = db.Int8Ptr(contactID)
	q.OpportunityID = db.Int8Ptr(opportunityID)
	q.Status = Status(status)
	q.ValidUntil = validUntil.Time
	q.PricingTier = pricing.Tier(tier)
	q.MarkupPercent = db.Decimal(markup)
	q.WastePercent = db.Decimal(waste)
	q.LabourRate = db.Decimal(labour)
	q.Totals = pricing.Totals{
		TotalCostExTax:     db.Decimal(cost),
		TotalSellExTax:     db.Decimal(sell),
		TaxAmount:          db.Decimal(tax),
		TotalIncTax:        db.Decimal(incTax),
		GrossProfit:        db.Decimal(profit),
		GrossProfitPercent: db.Decimal(profitPerc),
	}
	q.Sections = []Section{}
	return q, nil
}

func scanLine(row pgx.CollectableRow) (LineItem, error) {
	var (
		l                        LineItem
		productID                pgtype.Int8
		area, cost, sell, margin pgtype.Numeric
		packs                    int32
	)
	err := row.Scan(&l.ID, &l.SectionID, &productID, &l.Description, &area, &packs,
		&cost, &sell, &margin, &l.IsLabour, &l.SortOrder)
	if err != nil {
		return LineItem{}, err
	}
	l.ProductID = db.Int8Ptr(productID)
	l.Area = db.Decimal(area)
	l.PacksRequired = int64(packs)
	l.LineCost = db.Decimal(cost)
	l.LineSell = db.Decimal(sell)
	l.MarginPercent = db.Decimal(margin)
	return l, nil
}
