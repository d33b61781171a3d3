package opportunities

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
)

// Repository persists opportunities.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters ListFilters) ([]Opportunity, int, error)
	Get(ctx context.Context, id int64) (Opportunity, error)
	// GetForUpdate loads and row-locks an opportunity inside a transaction.
	GetForUpdate(ctx context.Context, id int64) (Opportunity, error)
	Create(ctx context.Context, o Opportunity) (int64, error)
	Update(ctx context.Context, o Opportunity) error
	Delete(ctx context.Context, id int64) error
	// StageOrder returns ids in stage ordered by position.
	StageOrder(ctx context.Context, stage Stage) ([]int64, error)
	// Reorder places ids into stage with positions 0..n-1.
	Reorder(ctx context.Context, stage Stage, ids []int64) error
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

const selectOpportunity = `SELECT o.id, o.title, o.company_id, COALESCE(co.name, ''), o.contact_id,
	COALESCE(TRIM(ct.first_name || ' ' || ct.last_name), ''), o.stage, o.estimated_value, o.expected_close,
	o.position, COALESCE(o.notes, ''), o.created_at, o.updated_at
	FROM opportunities o
	LEFT JOIN companies co ON co.id = o.company_id
	LEFT JOIN contacts ct ON ct.id = o.contact_id`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Opportunity, int, error) {
	var conditions []string
	var args []any
	if s := strings.TrimSpace(filters.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("o.title ILIKE $%d", len(args)))
	}
	if filters.Stage != nil {
		args = append(args, string(*filters.Stage))
		conditions = append(conditions, fmt.Sprintf("o.stage = $%d", len(args)))
	}
	if filters.CompanyID != nil {
		args = append(args, *filters.CompanyID)
		conditions = append(conditions, fmt.Sprintf("o.company_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities o"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count opportunities: %w", err)
	}
	query := selectOpportunity + where + " ORDER BY o.stage, o.position, o.id"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filters.Limit, filters.Offset)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list opportunities: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOpportunity)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Opportunity, error) {
	return r.getOne(ctx, selectOpportunity+" WHERE o.id = $1", id)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (Opportunity, error) {
	return r.getOne(ctx, selectOpportunity+" WHERE o.id = $1 FOR UPDATE OF o", id)
}

func (r *repository) getOne(ctx context.Context, query string, id int64) (Opportunity, error) {
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return Opportunity{}, err
	}
	o, err := pgx.CollectOneRow(rows, scanOpportunity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Opportunity{}, fmt.Errorf("opportunity %d: %w", id, httpx.ErrNotFound)
	}
	return o, err
}

func (r *repository) Create(ctx context.Context, o Opportunity) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO opportunities
		(title, company_id, contact_id, stage, estimated_value, expected_close, position, notes)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM opportunities WHERE stage = $4), NULLIF($7, ''))
		RETURNING id`,
		o.Title, db.NullInt8(o.CompanyID), db.NullInt8(o.ContactID), string(o.Stage),
		db.Numeric(o.EstimatedValue), nullDate(o.ExpectedClose), o.Notes).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, o Opportunity) error {
	tag, err := r.db.Exec(ctx, `UPDATE opportunities SET title = $2, company_id = $3, contact_id = $4,
		estimated_value = $5, expected_close = $6, notes = NULLIF($7, ''), updated_at = NOW()
		WHERE id = $1`,
		o.ID, o.Title, db.NullInt8(o.CompanyID), db.NullInt8(o.ContactID),
		db.Numeric(o.EstimatedValue), nullDate(o.ExpectedClose), o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %d: %w", o.ID, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) StageOrder(ctx context.Context, stage Stage) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM opportunities WHERE stage = $1 ORDER BY position, id`, string(stage))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *repository) Reorder(ctx context.Context, stage Stage, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `UPDATE opportunities o
		SET stage = $1, position = v.ord - 1, updated_at = NOW()
		FROM unnest($2::bigint[]) WITH ORDINALITY AS v(id, ord)
		WHERE o.id = v.id`, string(stage), ids)
	return err
}

func scanOpportunity(row pgx.CollectableRow) (Opportunity, error) {
	var (
		o                    Opportunity
		companyID, contactID pgtype.Int8
		stage                string
		value                pgtype.Numeric
		closeDate            pgtype.Date
	)
	err := row.Scan(&o.ID, &o.Title, &companyID, &o.CompanyName, &contactID, &o.ContactName, &stage,
		&value, &closeDate, &o.Position, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Opportunity{}, err
	}
	o.CompanyID = db.Int8Ptr(companyID)
	o.ContactID = db.Int8Ptr(contactID)
	o.Stage = Stage(stage)
	o.EstimatedValue = db.Decimal(value)
	if closeDate.Valid {
		t := closeDate.Time
		o.ExpectedClose = &t
	}
	return o, nil
}

func nullDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}
