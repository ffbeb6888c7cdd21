package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventcover_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Payment is one row in the append-only payment ledger.
type Payment struct {
	ID          uuid.UUID  `db:"id"`
	QuoteID     *uuid.UUID `db:"quote_id"`
	PolicyID    *uuid.UUID `db:"policy_id"`
	AmountCents int64      `db:"amount_cents"`
	Method      string     `db:"method"`
	Status      string     `db:"status"`
	Reference   string     `db:"reference"`
	GatewayID   *string    `db:"gateway_id"`
	Notes       string     `db:"notes"`
	CreatedAt   time.Time  `db:"created_at"`
}

// ListParams contains parameters for listing payments.
type ListParams struct {
	Status   string
	Page     int
	PageSize int
}

// ListResult contains the paginated result of listing payments.
type ListResult struct {
	Items      []Payment
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

const paymentColumns = `id, quote_id, policy_id, amount_cents, method, status, reference, gateway_id, notes, created_at`

// Repository provides database operations for the payment ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new payments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin starts a transaction; the service shares it with the conversion
// service so "record payment + issue policy" commits atomically.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// InsertTx appends a payment row inside the transaction.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, p *Payment) error {
	query := `
		INSERT INTO payments (id, quote_id, policy_id, amount_cents, method, status, reference, gateway_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.Exec(ctx, query,
		p.ID, p.QuoteID, p.PolicyID, p.AmountCents, p.Method, p.Status,
		p.Reference, p.GatewayID, p.Notes, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetByID loads a payment by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.QuoteID, &p.PolicyID, &p.AmountCents, &p.Method, &p.Status,
		&p.Reference, &p.GatewayID, &p.Notes, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("payment not found")
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}

// List retrieves ledger entries with pagination, newest first.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	var statusParam interface{}
	if params.Status != "" {
		statusParam = params.Status
	}

	baseQuery := ` FROM payments WHERE ($1::text IS NULL OR status = $1)`

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, statusParam).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+baseQuery+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, statusParam, params.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var items []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.QuoteID, &p.PolicyID, &p.AmountCents, &p.Method, &p.Status,
			&p.Reference, &p.GatewayID, &p.Notes, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}
