package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thermaquote/thermaquote/internal/platform/db"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
)

// Repository persists companies.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Company, int, error)
	Get(ctx context.Context, id int64) (Company, error)
	Create(ctx context.Context, c Company) (int64, error)
	Update(ctx context.Context, c Company) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db db.DBTX
}

// NewRepository builds a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const selectCompany = `SELECT c.id, c.name, COALESCE(c.phone, ''), COALESCE(c.email, ''), COALESCE(c.address, ''),
	COALESCE(c.notes, ''), (SELECT COUNT(*) FROM contacts ct WHERE ct.company_id = c.id), c.created_at, c.updated_at
	FROM companies c`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	where := ""
	args := []any{}
	if s := strings.TrimSpace(filters.Search); s != "" {
		where = " WHERE (c.name ILIKE $1 OR c.email ILIKE $1 OR c.phone ILIKE $1)"
		args = append(args, "%"+s+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM companies c"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	query := selectCompany + where + " ORDER BY c.name, c.id"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filters.Limit, filters.Offset)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	companies, err := pgx.CollectRows(rows, scanCompany)
	if err != nil {
		return nil, 0, err
	}
	return companies, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Company, error) {
	rows, err := r.db.Query(ctx, selectCompany+" WHERE c.id = $1", id)
	if err != nil {
		return Company{}, err
	}
	c, err := pgx.CollectOneRow(rows, scanCompany)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, fmt.Errorf("company %d: %w", id, httpx.ErrNotFound)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Company) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO companies (name, phone, email, address, notes)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, '')) RETURNING id`,
		c.Name, c.Phone, c.Email, c.Address, c.Notes).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("company %q: %w", c.Name, httpx.ErrDuplicate)
	}
	return id, err
}

func (r *repository) Update(ctx context.Context, c Company) error {
	tag, err := r.db.Exec(ctx, `UPDATE companies SET name = $2, phone = NULLIF($3, ''), email = NULLIF($4, ''),
		address = NULLIF($5, ''), notes = NULLIF($6, ''), updated_at = NOW() WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.Notes)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("company %q: %w", c.Name, httpx.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company %d: %w", c.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func scanCompany(row pgx.CollectableRow) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes, &c.Contacts, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
