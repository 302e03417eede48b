// Package queries implements the query record store: a thin wrapper
// over the document store façade that enforces a query record's
// monotonic state machine.
package queries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/repositories/document"
	"go.mongodb.org/mongo-driver/bson"
)

// Store is the query record store's public contract.
type Store interface {
	// Create initialises a new query record in QueryStateCreated and
	// persists it.
	Create(ctx context.Context, gatewayID, endpoint string, params domain.QueryParameters) (domain.Query, error)

	// Advance enforces the monotonic state transition: newState must
	// strictly follow the record's current state. response is only
	// meaningful (and required) when newState
	// is domain.QueryStateFinished. Returns domain.ErrInvalidTransition
	// if the transition is illegal or was lost to a race.
	Advance(ctx context.Context, id string, newState domain.QueryState, response *domain.MergedResponse) (domain.Query, error)

	// Get returns the full query record by id.
	Get(ctx context.Context, id string) (domain.Query, error)

	// GetPublic returns the record with Response cleared unless the
	// query has finished.
	GetPublic(ctx context.Context, id string) (domain.Query, error)

	// List returns a page of query records matching filter.
	List(ctx context.Context, filter bson.M, skip, limit int64) ([]domain.Query, int64, error)
}

type store struct {
	queries document.Store[domain.Query]
}

// New builds a Store over the given document store.
func New(queries document.Store[domain.Query]) Store {
	return &store{queries: queries}
}

func (s *store) Create(ctx context.Context, gatewayID, endpoint string, params domain.QueryParameters) (domain.Query, error) {
	now := time.Now().UTC()
	query := domain.Query{
		ID:              uuid.New().String(),
		GatewayID:       gatewayID,
		Endpoint:        endpoint,
		QueryParameters: params,
		State:           domain.QueryStateCreated,
		CreatedAt:       now,
		LastUpdated:     now,
	}

	if err := s.queries.Insert(ctx, query); err != nil {
		return domain.Query{}, err
	}
	return query, nil
}

func (s *store) Advance(ctx context.Context, id string, newState domain.QueryState, response *domain.MergedResponse) (domain.Query, error) {
	current, err := s.queries.Get(ctx, id)
	if err != nil {
		return domain.Query{}, err
	}

	if !current.State.Precedes(newState) {
		return domain.Query{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.State, newState)
	}

	patch := bson.M{
		"state":        newState,
		"last_updated": time.Now().UTC(),
	}
	if newState == domain.QueryStateFinished {
		patch["response"] = response
	}

	if err := s.queries.UpdateWhere(ctx, id, bson.M{"state": current.State}, patch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The filtered update matched nothing: another writer moved
			// the record on since we read it. This should never happen
			// in practice under single-owner advancement; surface it as
			// the same invalid-transition failure a stale caller would
			// have hit had it read the new state first.
			return domain.Query{}, fmt.Errorf("%w: concurrent advance past %s", domain.ErrInvalidTransition, current.State)
		}
		return domain.Query{}, err
	}

	return s.queries.Get(ctx, id)
}

func (s *store) Get(ctx context.Context, id string) (domain.Query, error) {
	return s.queries.Get(ctx, id)
}

func (s *store) GetPublic(ctx context.Context, id string) (domain.Query, error) {
	query, err := s.queries.Get(ctx, id)
	if err != nil {
		return domain.Query{}, err
	}
	return query.Public(), nil
}

func (s *store) List(ctx context.Context, filter bson.M, skip, limit int64) ([]domain.Query, int64, error) {
	return s.queries.List(ctx, filter, bson.D{{Key: "created_at", Value: -1}}, skip, limit)
}
