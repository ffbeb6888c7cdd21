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

// ── Domain Models ─────────────────────────────────────────────────────────────

// Quote is the database model for a quote header.
type Quote struct {
	ID                    uuid.UUID `db:"id"`
	QuoteNumber           string    `db:"quote_number"`
	Email                 string    `db:"email"`
	CoverageLevel         int       `db:"coverage_level"`
	LiabilityOption       string    `db:"liability_option"`
	LiquorLiability       bool      `db:"liquor_liability"`
	CovidDisclosure       bool      `db:"covid_disclosure"`
	SpecialActivities     bool      `db:"special_activities"`
	BasePremiumCents      int64     `db:"base_premium_cents"`
	LiabilityPremiumCents int64     `db:"liability_premium_cents"`
	LiquorPremiumCents    int64     `db:"liquor_premium_cents"`
	TotalPremiumCents     int64     `db:"total_premium_cents"`
	Status                string    `db:"status"`
	Source                string    `db:"source"`
	ConvertedToPolicy     bool      `db:"converted_to_policy"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// Event is the database model for the insured event.
type Event struct {
	ID        uuid.UUID  `db:"id"`
	QuoteID   uuid.UUID  `db:"quote_id"`
	EventType string     `db:"event_type"`
	EventDate *time.Time `db:"event_date"`
	MaxGuests int        `db:"max_guests"`
	Honoree1  *string    `db:"honoree1_name"`
	Honoree2  *string    `db:"honoree2_name"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Venue is one venue row; an event owns at most one row per slot.
type Venue struct {
	ID            uuid.UUID `db:"id"`
	EventID       uuid.UUID `db:"event_id"`
	Slot          string    `db:"slot"`
	Name          string    `db:"name"`
	Address1      string    `db:"address1"`
	City          string    `db:"city"`
	State         string    `db:"state"`
	Zip           string    `db:"zip"`
	Country       string    `db:"country"`
	VenueType     string    `db:"venue_type"`
	IndoorOutdoor string    `db:"indoor_outdoor"`
	AsInsured     bool      `db:"as_insured"`
	CreatedAt     time.Time `db:"created_at"`
}

// PolicyHolder is the database model for the policy holder attached to a quote.
type PolicyHolder struct {
	ID           uuid.UUID `db:"id"`
	QuoteID      uuid.UUID `db:"quote_id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Phone        string    `db:"phone"`
	Address      string    `db:"address"`
	City         string    `db:"city"`
	State        string    `db:"state"`
	Zip          string    `db:"zip"`
	Country      string    `db:"country"`
	Relationship string    `db:"relationship"`
	Consent      bool      `db:"consent"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Graph is a quote with all of its child aggregates loaded.
type Graph struct {
	Quote  Quote
	Event  *Event
	Venues []Venue
	Holder *PolicyHolder
}

// DuplicateParams are the fields compared by the duplicate-submission guard.
// All fields must match an existing quote created inside the window.
type DuplicateParams struct {
	Email                 string
	CoverageLevel         int
	LiabilityOption       string
	LiquorLiability       bool
	CovidDisclosure       bool
	SpecialActivities     bool
	BasePremiumCents      int64
	LiabilityPremiumCents int64
	LiquorPremiumCents    int64
	TotalPremiumCents     int64
	Source                string
	EventType             string
	EventDate             *time.Time
	MaxGuests             int
	Since                 time.Time
}

// ListParams contains parameters for listing quotes.
type ListParams struct {
	Status   string
	Source   string
	Search   string
	Page     int
	PageSize int
}

// ListResult contains the paginated result of listing quotes.
type ListResult struct {
	Items      []Quote
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// ── Repository ────────────────────────────────────────────────────────────────

const quoteNotFoundMsg = "quote not found"

const quoteColumns = `id, quote_number, email, coverage_level, liability_option,
	liquor_liability, covid_disclosure, special_activities,
	base_premium_cents, liability_premium_cents, liquor_premium_cents, total_premium_cents,
	status, source, converted_to_policy, created_at, updated_at`

// Repository provides database operations for quotes.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new quotes repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.QuoteNumber, &q.Email, &q.CoverageLevel, &q.LiabilityOption,
		&q.LiquorLiability, &q.CovidDisclosure, &q.SpecialActivities,
		&q.BasePremiumCents, &q.LiabilityPremiumCents, &q.LiquorPremiumCents, &q.TotalPremiumCents,
		&q.Status, &q.Source, &q.ConvertedToPolicy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(quoteNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan quote: %w", err)
	}
	return &q, nil
}

// CreateGraph inserts a quote and its event in a single transaction.
func (r *Repository) CreateGraph(ctx context.Context, quote *Quote, event *Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	quoteQuery := `
		INSERT INTO quotes (
			id, quote_number, email, coverage_level, liability_option,
			liquor_liability, covid_disclosure, special_activities,
			base_premium_cents, liability_premium_cents, liquor_premium_cents, total_premium_cents,
			status, source, converted_to_policy, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	if _, err := tx.Exec(ctx, quoteQuery,
		quote.ID, quote.QuoteNumber, quote.Email, quote.CoverageLevel, quote.LiabilityOption,
		quote.LiquorLiability, quote.CovidDisclosure, quote.SpecialActivities,
		quote.BasePremiumCents, quote.LiabilityPremiumCents, quote.LiquorPremiumCents, quote.TotalPremiumCents,
		quote.Status, quote.Source, quote.ConvertedToPolicy, quote.CreatedAt, quote.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	query := `
		INSERT INTO events (id, quote_id, event_type, event_date, max_guests, honoree1_name, honoree2_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.Exec(ctx, query,
		event.ID, event.QuoteID, event.EventType, event.EventDate, event.MaxGuests,
		event.Honoree1, event.Honoree2, event.CreatedAt, event.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetByNumber retrieves a quote header by its shareable number.
func (r *Repository) GetByNumber(ctx context.Context, quoteNumber string) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE quote_number = $1`
	return scanQuote(r.pool.QueryRow(ctx, query, quoteNumber))
}

// GetByID retrieves a quote header by its primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	return scanQuote(r.pool.QueryRow(ctx, query, id))
}

// GetGraphByNumber loads a quote and all child aggregates.
func (r *Repository) GetGraphByNumber(ctx context.Context, quoteNumber string) (*Graph, error) {
	quote, err := r.GetByNumber(ctx, quoteNumber)
	if err != nil {
		return nil, err
	}
	return r.loadChildren(ctx, quote)
}

// GetGraphByID loads a quote and all child aggregates by primary key.
func (r *Repository) GetGraphByID(ctx context.Context, id uuid.UUID) (*Graph, error) {
	quote, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.loadChildren(ctx, quote)
}

func (r *Repository) loadChildren(ctx context.Context, quote *Quote) (*Graph, error) {
	g := &Graph{Quote: *quote}

	var ev Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, quote_id, event_type, event_date, max_guests, honoree1_name, honoree2_name, created_at, updated_at
		FROM events WHERE quote_id = $1`, quote.ID).Scan(
		&ev.ID, &ev.QuoteID, &ev.EventType, &ev.EventDate, &ev.MaxGuests, &ev.Honoree1, &ev.Honoree2, &ev.CreatedAt, &ev.UpdatedAt,
	)
	switch {
	case err == nil:
		g.Event = &ev
	case errors.Is(err, pgx.ErrNoRows):
		// quote may not have an event yet
	default:
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	if g.Event != nil {
		venues, err := r.venuesByEventID(ctx, g.Event.ID)
		if err != nil {
			return nil, err
		}
		g.Venues = venues
	}

	var ph PolicyHolder
	err = r.pool.QueryRow(ctx, `
		SELECT id, quote_id, first_name, last_name, phone, address, city, state, zip, country, relationship, consent, created_at, updated_at
		FROM policy_holders WHERE quote_id = $1`, quote.ID).Scan(
		&ph.ID, &ph.QuoteID, &ph.FirstName, &ph.LastName, &ph.Phone, &ph.Address,
		&ph.City, &ph.State, &ph.Zip, &ph.Country, &ph.Relationship, &ph.Consent, &ph.CreatedAt, &ph.UpdatedAt,
	)
	switch {
	case err == nil:
		g.Holder = &ph
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to load policy holder: %w", err)
	}

	return g, nil
}

func (r *Repository) venuesByEventID(ctx context.Context, eventID uuid.UUID) ([]Venue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, slot, name, address1, city, state, zip, country, venue_type, indoor_outdoor, as_insured, created_at
		FROM venues WHERE event_id = $1 ORDER BY slot ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	var venues []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(
			&v.ID, &v.EventID, &v.Slot, &v.Name, &v.Address1, &v.City, &v.State,
			&v.Zip, &v.Country, &v.VenueType, &v.IndoorOutdoor, &v.AsInsured, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate venues: %w", err)
	}
	return venues, nil
}

// UpdateGraph updates a quote and upserts its child aggregates in one
// transaction. Venues, when provided, replace the existing set.
func (r *Repository) UpdateGraph(ctx context.Context, quote *Quote, event *Event, venues []Venue, replaceVenues bool, holder *PolicyHolder) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.UpdateGraphInTx(ctx, tx, quote, event, venues, replaceVenues, holder); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateGraphInTx performs the graph update inside a caller-owned transaction.
// The policy amendment pipeline uses this to keep the version snapshot and the
// applied changes atomic.
func (r *Repository) UpdateGraphInTx(ctx context.Context, tx pgx.Tx, quote *Quote, event *Event, venues []Venue, replaceVenues bool, holder *PolicyHolder) error {
	updateQuery := `
		UPDATE quotes SET
			email = $2, coverage_level = $3, liability_option = $4,
			liquor_liability = $5, covid_disclosure = $6, special_activities = $7,
			base_premium_cents = $8, liability_premium_cents = $9, liquor_premium_cents = $10, total_premium_cents = $11,
			status = $12, updated_at = $13
		WHERE id = $1`

	result, err := tx.Exec(ctx, updateQuery,
		quote.ID, quote.Email, quote.CoverageLevel, quote.LiabilityOption,
		quote.LiquorLiability, quote.CovidDisclosure, quote.SpecialActivities,
		quote.BasePremiumCents, quote.LiabilityPremiumCents, quote.LiquorPremiumCents, quote.TotalPremiumCents,
		quote.Status, quote.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(quoteNotFoundMsg)
	}

	if event != nil {
		if err := upsertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if replaceVenues && event != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM venues WHERE event_id = $1`, event.ID); err != nil {
			return fmt.Errorf("failed to delete old venues: %w", err)
		}
		for i := range venues {
			if err := insertVenue(ctx, tx, &venues[i]); err != nil {
				return err
			}
		}
	}

	if holder != nil {
		if err := upsertHolder(ctx, tx, holder); err != nil {
			return err
		}
	}

	return nil
}

func upsertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	query := `
		INSERT INTO events (id, quote_id, event_type, event_date, max_guests, honoree1_name, honoree2_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (quote_id) DO UPDATE SET
			event_type = EXCLUDED.event_type,
			event_date = EXCLUDED.event_date,
			max_guests = EXCLUDED.max_guests,
			honoree1_name = EXCLUDED.honoree1_name,
			honoree2_name = EXCLUDED.honoree2_name,
			updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, query,
		event.ID, event.QuoteID, event.EventType, event.EventDate, event.MaxGuests,
		event.Honoree1, event.Honoree2, event.CreatedAt, event.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

func insertVenue(ctx context.Context, tx pgx.Tx, v *Venue) error {
	query := `
		INSERT INTO venues (id, event_id, slot, name, address1, city, state, zip, country, venue_type, indoor_outdoor, as_insured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := tx.Exec(ctx, query,
		v.ID, v.EventID, v.Slot, v.Name, v.Address1, v.City, v.State, v.Zip, v.Country,
		v.VenueType, v.IndoorOutdoor, v.AsInsured, v.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert venue: %w", err)
	}
	return nil
}

func upsertHolder(ctx context.Context, tx pgx.Tx, h *PolicyHolder) error {
	query := `
		INSERT INTO policy_holders (id, quote_id, first_name, last_name, phone, address, city, state, zip, country, relationship, consent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (quote_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			country = EXCLUDED.country,
			relationship = EXCLUDED.relationship,
			consent = EXCLUDED.consent,
			updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, query,
		h.ID, h.QuoteID, h.FirstName, h.LastName, h.Phone, h.Address, h.City, h.State,
		h.Zip, h.Country, h.Relationship, h.Consent, h.CreatedAt, h.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert policy holder: %w", err)
	}
	return nil
}

// FindDuplicate searches for a quote matching every field of the guard inside
// the trailing window. Returns nil without error when no match exists.
func (r *Repository) FindDuplicate(ctx context.Context, params DuplicateParams) (*Quote, error) {
	query := `
		SELECT ` + qualifiedQuoteColumns + `
		FROM quotes q
		JOIN events e ON e.quote_id = q.id
		WHERE q.email = $1
			AND q.coverage_level = $2
			AND q.liability_option = $3
			AND q.liquor_liability = $4
			AND q.covid_disclosure = $5
			AND q.special_activities = $6
			AND q.base_premium_cents = $7
			AND q.liability_premium_cents = $8
			AND q.liquor_premium_cents = $9
			AND q.total_premium_cents = $10
			AND q.source = $11
			AND e.event_type = $12
			AND (e.event_date = $13 OR (e.event_date IS NULL AND $13::date IS NULL))
			AND e.max_guests = $14
			AND q.created_at >= $15
		ORDER BY q.created_at DESC
		LIMIT 1`

	quote, err := scanQuote(r.pool.QueryRow(ctx, query,
		params.Email, params.CoverageLevel, params.LiabilityOption,
		params.LiquorLiability, params.CovidDisclosure, params.SpecialActivities,
		params.BasePremiumCents, params.LiabilityPremiumCents, params.LiquorPremiumCents, params.TotalPremiumCents,
		params.Source, params.EventType, params.EventDate, params.MaxGuests, params.Since,
	))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return quote, nil
}

const qualifiedQuoteColumns = `q.id, q.quote_number, q.email, q.coverage_level, q.liability_option,
	q.liquor_liability, q.covid_disclosure, q.special_activities,
	q.base_premium_cents, q.liability_premium_cents, q.liquor_premium_cents, q.total_premium_cents,
	q.status, q.source, q.converted_to_policy, q.created_at, q.updated_at`

// ExpireStale transitions unconverted quotes older than the cutoff to EXPIRED.
// Returns the number of quotes transitioned.
func (r *Repository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE quotes SET status = 'EXPIRED', updated_at = NOW()
		WHERE converted_to_policy = FALSE
			AND status <> 'EXPIRED'
			AND status <> 'COMPLETE'
			AND created_at < $1`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale quotes: %w", err)
	}
	return result.RowsAffected(), nil
}

// List retrieves quotes with filtering and pagination.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	var statusParam, sourceParam, searchParam interface{}
	if params.Status != "" {
		statusParam = params.Status
	}
	if params.Source != "" {
		sourceParam = params.Source
	}
	if params.Search != "" {
		searchParam = "%" + params.Search + "%"
	}

	baseQuery := `
		FROM quotes
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::text IS NULL OR source = $2)
			AND ($3::text IS NULL OR quote_number ILIKE $3 OR email ILIKE $3)
	`
	args := []interface{}{statusParam, sourceParam, searchParam}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count quotes: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := `SELECT ` + quoteColumns + baseQuery + `
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var items []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(
			&q.ID, &q.QuoteNumber, &q.Email, &q.CoverageLevel, &q.LiabilityOption,
			&q.LiquorLiability, &q.CovidDisclosure, &q.SpecialActivities,
			&q.BasePremiumCents, &q.LiabilityPremiumCents, &q.LiquorPremiumCents, &q.TotalPremiumCents,
			&q.Status, &q.Source, &q.ConvertedToPolicy, &q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}
