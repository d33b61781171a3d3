package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thermaquote/thermaquote/internal/platform/db"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
)

const foreignKeyViolation = "23503"

// Repository persists contacts.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Contact, int, error)
	Get(ctx context.Context, id int64) (Contact, error)
	Create(ctx context.Context, c Contact) (int64, error)
	Update(ctx context.Context, c Contact) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db db.DBTX
}

// NewRepository builds a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const selectContact = `SELECT ct.id, ct.company_id, COALESCE(co.name, ''), ct.first_name, ct.last_name,
	COALESCE(ct.email, ''), COALESCE(ct.phone, ''), COALESCE(ct.role, ''), COALESCE(ct.notes, ''), ct.created_at, ct.updated_at
	FROM contacts ct LEFT JOIN companies co ON co.id = ct.company_id`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Contact, int, error) {
	var conditions []string
	var args []any
	if s := strings.TrimSpace(filters.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("(ct.first_name ILIKE $%[1]d OR ct.last_name ILIKE $%[1]d OR ct.email ILIKE $%[1]d)", len(args)))
	}
	if filters.CompanyID != nil {
		args = append(args, *filters.CompanyID)
		conditions = append(conditions, fmt.Sprintf("ct.company_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM contacts ct"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}
	query := selectContact + where + " ORDER BY ct.first_name, ct.last_name, ct.id"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filters.Limit, filters.Offset)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	contacts, err := pgx.CollectRows(rows, scanContact)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Contact, error) {
	rows, err := r.db.Query(ctx, selectContact+" WHERE ct.id = $1", id)
	if err != nil {
		return Contact{}, err
	}
	c, err := pgx.CollectOneRow(rows, scanContact)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, fmt.Errorf("contact %d: %w", id, httpx.ErrNotFound)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Contact) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO contacts (company_id, first_name, last_name, email, phone, role, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, '')) RETURNING id`,
		db.NullInt8(c.CompanyID), c.FirstName, c.LastName, c.Email, c.Phone, c.Role, c.Notes).Scan(&id)
	return id, mapWriteError(err, c.CompanyID)
}

func (r *repository) Update(ctx context.Context, c Contact) error {
	tag, err := r.db.Exec(ctx, `UPDATE contacts SET company_id = $2, first_name = $3, last_name = $4,
		email = NULLIF($5, ''), phone = NULLIF($6, ''), role = NULLIF($7, ''), notes = NULLIF($8, ''), updated_at = NOW()
		WHERE id = $1`,
		c.ID, db.NullInt8(c.CompanyID), c.FirstName, c.LastName, c.Email, c.Phone, c.Role, c.Notes)
	if err != nil {
		return mapWriteError(err, c.CompanyID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %d: %w", c.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func mapWriteError(err error, companyID *int64) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && companyID != nil {
		return &httpx.ValidationError{Fields: map[string]string{"company_id": fmt.Sprintf("company %d does not exist", *companyID)}}
	}
	return err
}

func scanContact(row pgx.CollectableRow) (Contact, error) {
	var (
		c         Contact
		companyID pgtype.Int8
	)
	err := row.Scan(&c.ID, &companyID, &c.CompanyName, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Role, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	c.CompanyID = db.Int8Ptr(companyID)
	return c, err
}
