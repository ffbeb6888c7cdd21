package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the quotes service depends on.
type Store interface {
	CreateGraph(ctx context.Context, quote *Quote, event *Event) error
	GetByNumber(ctx context.Context, quoteNumber string) (*Quote, error)
	GetGraphByNumber(ctx context.Context, quoteNumber string) (*Graph, error)
	GetGraphByID(ctx context.Context, id uuid.UUID) (*Graph, error)
	UpdateGraph(ctx context.Context, quote *Quote, event *Event, venues []Venue, replaceVenues bool, holder *PolicyHolder) error
	FindDuplicate(ctx context.Context, params DuplicateParams) (*Quote, error)
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

var _ Store = (*Repository)(nil)
