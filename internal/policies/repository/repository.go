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

// Policy is the database model for an issued policy. The underlying risk
// data lives on the converted quote graph and is referenced, not copied.
type Policy struct {
	ID                uuid.UUID  `db:"id"`
	PolicyNumber      string     `db:"policy_number"`
	QuoteID           uuid.UUID  `db:"quote_id"`
	EventID           *uuid.UUID `db:"event_id"`
	PolicyHolderID    *uuid.UUID `db:"policy_holder_id"`
	Status            string     `db:"status"`
	TotalPremiumCents int64      `db:"total_premium_cents"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Version is one pre-amendment snapshot of a policy.
type Version struct {
	ID          uuid.UUID `db:"id"`
	PolicyID    uuid.UUID `db:"policy_id"`
	Snapshot    []byte    `db:"snapshot"`
	ArtifactKey string    `db:"artifact_key"`
	Reason      string    `db:"reason"`
	CreatedAt   time.Time `db:"created_at"`
}

// ConversionQuote is the locked view of a quote during conversion.
type ConversionQuote struct {
	ID                uuid.UUID
	QuoteNumber       string
	Email             string
	Status            string
	Source            string
	ConvertedToPolicy bool
	TotalPremiumCents int64
	EventID           *uuid.UUID
	PolicyHolderID    *uuid.UUID
}

// ListParams contains parameters for listing policies.
type ListParams struct {
	Search   string
	Page     int
	PageSize int
}

// ListResult contains the paginated result of listing policies.
type ListResult struct {
	Items      []Policy
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

const policyNotFoundMsg = "policy not found"

const policyColumns = `id, policy_number, quote_id, event_id, policy_holder_id, status, total_premium_cents, created_at, updated_at`

// Repository provides database operations for policies and their versions.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new policies repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin starts a transaction for the conversion and amendment flows, which
// span the policies and quotes tables.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func scanPolicy(row pgx.Row) (*Policy, error) {
	var p Policy
	err := row.Scan(
		&p.ID, &p.PolicyNumber, &p.QuoteID, &p.EventID, &p.PolicyHolderID,
		&p.Status, &p.TotalPremiumCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(policyNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}
	return &p, nil
}

// LockQuoteForConversionTx loads the quote row under FOR UPDATE, serializing
// concurrent conversion attempts on the same quote.
func (r *Repository) LockQuoteForConversionTx(ctx context.Context, tx pgx.Tx, quoteNumber string) (*ConversionQuote, error) {
	var q ConversionQuote
	err := tx.QueryRow(ctx, `
		SELECT id, quote_number, email, status, source, converted_to_policy, total_premium_cents
		FROM quotes WHERE quote_number = $1
		FOR UPDATE`, quoteNumber).Scan(
		&q.ID, &q.QuoteNumber, &q.Email, &q.Status, &q.Source, &q.ConvertedToPolicy, &q.TotalPremiumCents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("quote not found")
		}
		return nil, fmt.Errorf("failed to lock quote: %w", err)
	}

	if err := tx.QueryRow(ctx, `SELECT id FROM events WHERE quote_id = $1`, q.ID).Scan(&q.EventID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load event id: %w", err)
	}
	if err := tx.QueryRow(ctx, `SELECT id FROM policy_holders WHERE quote_id = $1`, q.ID).Scan(&q.PolicyHolderID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load policy holder id: %w", err)
	}

	return &q, nil
}

// InsertPolicyTx inserts a policy row. The UNIQUE constraint on quote_id is
// the at-most-once conversion guard; violations surface as *pgconn.PgError.
func (r *Repository) InsertPolicyTx(ctx context.Context, tx pgx.Tx, p *Policy) error {
	query := `
		INSERT INTO policies (id, policy_number, quote_id, event_id, policy_holder_id, status, total_premium_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.Exec(ctx, query,
		p.ID, p.PolicyNumber, p.QuoteID, p.EventID, p.PolicyHolderID,
		p.Status, p.TotalPremiumCents, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}
	return nil
}

// MarkQuoteConvertedTx flips the quote to COMPLETE and converted.
func (r *Repository) MarkQuoteConvertedTx(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID, now time.Time) error {
	if _, err := tx.Exec(ctx, `
		UPDATE quotes SET status = 'COMPLETE', converted_to_policy = TRUE, updated_at = $2
		WHERE id = $1`, quoteID, now); err != nil {
		return fmt.Errorf("failed to mark quote converted: %w", err)
	}
	return nil
}

// GetByQuoteIDTx loads a policy by quote id inside a transaction.
func (r *Repository) GetByQuoteIDTx(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE quote_id = $1`
	return scanPolicy(tx.QueryRow(ctx, query, quoteID))
}

// GetByQuoteNumber loads the policy issued from the given quote.
func (r *Repository) GetByQuoteNumber(ctx context.Context, quoteNumber string) (*Policy, error) {
	query := `
		SELECT p.id, p.policy_number, p.quote_id, p.event_id, p.policy_holder_id, p.status, p.total_premium_cents, p.created_at, p.updated_at
		FROM policies p
		JOIN quotes q ON q.id = p.quote_id
		WHERE q.quote_number = $1`
	return scanPolicy(r.pool.QueryRow(ctx, query, quoteNumber))
}

// GetByID loads a policy by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`
	return scanPolicy(r.pool.QueryRow(ctx, query, id))
}

// UpdatePremiumTx writes a recomputed premium back to the policy.
func (r *Repository) UpdatePremiumTx(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, totalCents int64, now time.Time) error {
	if _, err := tx.Exec(ctx, `
		UPDATE policies SET total_premium_cents = $2, updated_at = $3 WHERE id = $1`,
		policyID, totalCents, now); err != nil {
		return fmt.Errorf("failed to update policy premium: %w", err)
	}
	return nil
}

// List retrieves policies with pagination, newest first.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	var searchParam interface{}
	if params.Search != "" {
		searchParam = "%" + params.Search + "%"
	}

	baseQuery := `
		FROM policies p
		JOIN quotes q ON q.id = p.quote_id
		WHERE ($1::text IS NULL OR p.policy_number ILIKE $1 OR q.quote_number ILIKE $1 OR q.email ILIKE $1)
	`
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, searchParam).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count policies: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.policy_number, p.quote_id, p.event_id, p.policy_holder_id, p.status, p.total_premium_cents, p.created_at, p.updated_at
		`+baseQuery+`
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`, searchParam, params.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var items []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(
			&p.ID, &p.PolicyNumber, &p.QuoteID, &p.EventID, &p.PolicyHolderID,
			&p.Status, &p.TotalPremiumCents, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}
