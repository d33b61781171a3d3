package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thermaquote/thermaquote/internal/platform/db"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
)

// Repository persists products and application types.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetMany(ctx context.Context, ids []int64) ([]Product, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, p Product) error
	SetActive(ctx context.Context, id int64, active bool) error
	UpsertBySKU(ctx context.Context, p Product) (created bool, err error)
	ListApplicationTypes(ctx context.Context) ([]ApplicationType, error)
	EnsureApplicationType(ctx context.Context, name, color string) (int64, error)
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

const productColumns = `p.id, p.sku, p.description, p.cost_price, p.pack_price, p.pack_size, p.waste_percent,
	p.application_type_id, COALESCE(a.name, ''), COALESCE(a.color, ''), p.is_labour, p.is_active, p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN application_types a ON a.id = p.application_type_id`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if s := strings.TrimSpace(filters.Search); s != "" {
		conditions = append(conditions, fmt.Sprintf("(p.sku ILIKE $%d OR p.description ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+s+"%")
		argPos++
	}
	if filters.Active != nil {
		conditions = append(conditions, fmt.Sprintf("p.is_active = $%d", argPos))
		args = append(args, *filters.Active)
		argPos++
	}
	if filters.Labour != nil {
		conditions = append(conditions, fmt.Sprintf("p.is_labour = $%d", argPos))
		args = append(args, *filters.Labour)
		argPos++
	}
	if filters.ApplicationTypeID != nil {
		conditions = append(conditions, fmt.Sprintf("p.application_type_id = $%d", argPos))
		args = append(args, *filters.ApplicationTypeID)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*)"+productFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := "SELECT " + productColumns + productFrom + where + " ORDER BY p.description, p.id"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, filters.Limit, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	rows, err := r.db.Query(ctx, "SELECT "+productColumns+productFrom+" WHERE p.id = $1", id)
	if err != nil {
		return Product{}, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return Product{}, err
	}
	if len(products) == 0 {
		return Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return products[0], nil
}

func (r *repository) GetMany(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, "SELECT "+productColumns+productFrom+" WHERE p.id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return collectProducts(rows)
}

func (r *repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO products
		(sku, description, cost_price, pack_price, pack_size, waste_percent, application_type_id, is_labour, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.SKU, p.Description, db.Numeric(p.CostPrice), db.Numeric(p.PackPrice), db.Numeric(p.PackSize),
		db.Numeric(p.WastePercent), db.NullInt8(p.ApplicationTypeID), p.IsLabour, p.IsActive,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("sku %q: %w", p.SKU, httpx.ErrDuplicate)
	}
	return id, err
}

func (r *repository) Update(ctx context.Context, p Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET
		sku = $2, description = $3, cost_price = $4, pack_price = $5, pack_size = $6, waste_percent = $7,
		application_type_id = $8, is_labour = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.SKU, p.Description, db.Numeric(p.CostPrice), db.Numeric(p.PackPrice), db.Numeric(p.PackSize),
		db.Numeric(p.WastePercent), db.NullInt8(p.ApplicationTypeID), p.IsLabour, p.IsActive,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("sku %q: %w", p.SKU, httpx.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) UpsertBySKU(ctx context.Context, p Product) (bool, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, `INSERT INTO products
		(sku, description, cost_price, pack_price, pack_size, waste_percent, application_type_id, is_labour, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sku) DO UPDATE SET
			description = EXCLUDED.description,
			cost_price = EXCLUDED.cost_price,
			pack_price = EXCLUDED.pack_price,
			pack_size = EXCLUDED.pack_size,
			waste_percent = EXCLUDED.waste_percent,
			application_type_id = COALESCE(EXCLUDED.application_type_id, products.application_type_id),
			is_labour = EXCLUDED.is_labour,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		p.SKU, p.Description, db.Numeric(p.CostPrice), db.Numeric(p.PackPrice), db.Numeric(p.PackSize),
		db.Numeric(p.WastePercent), db.NullInt8(p.ApplicationTypeID), p.IsLabour, p.IsActive,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert sku %q: %w", p.SKU, err)
	}
	return inserted, nil
}

func (r *repository) ListApplicationTypes(ctx context.Context) ([]ApplicationType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, color FROM application_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []ApplicationType
	for rows.Next() {
		var t ApplicationType
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *repository) EnsureApplicationType(ctx context.Context, name, color string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM application_types WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if color == "" {
		color = defaultColor
	}
	err = r.db.QueryRow(ctx, `INSERT INTO application_types (name, color) VALUES ($1, $2) RETURNING id`, name, color).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("application type %q: %w", name, httpx.ErrDuplicate)
	}
	return id, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var (
			p                                    Product
			cost, packPrice, packSize, wastePerc pgtype.Numeric
			appType                              pgtype.Int8
		)
		if err := rows.Scan(&p.ID, &p.SKU, &p.Description, &cost, &packPrice, &packSize, &wastePerc,
			&appType, &p.ApplicationType, &p.Color, &p.IsLabour, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.CostPrice = db.Decimal(cost)
		p.PackPrice = db.Decimal(packPrice)
		p.PackSize = db.Decimal(packSize)
		p.WastePercent = db.Decimal(wastePerc)
		p.ApplicationTypeID = db.Int8Ptr(appType)
		products = append(products, p)
	}
	return products, rows.Err()
}

var _ Repository = (*repository)(nil)
