package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/repositories/document"
	"github.com/matryer/is"
)

func newTestStore() Store {
	return New(document.NewMemoryStore[domain.Query]())
}

func TestCreateStartsInCreatedState(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore()

	query, err := store.Create(ctx, "g1", "structures", domain.QueryParameters{Filter: "elements HAS \"Al\""})
	is.NoErr(err)
	is.Equal(query.State, domain.QueryStateCreated)
	is.Equal(query.GatewayID, "g1")
	is.True(query.ID != "")
}

func TestAdvanceEnforcesMonotonicOrder(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore()

	query, err := store.Create(ctx, "g1", "structures", domain.QueryParameters{})
	is.NoErr(err)

	_, err = store.Advance(ctx, query.ID, domain.QueryStateStarted, nil)
	is.NoErr(err)

	_, err = store.Advance(ctx, query.ID, domain.QueryStateCreated, nil)
	is.True(errors.Is(err, domain.ErrInvalidTransition))
}

func TestAdvanceToFinishedSetsResponse(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore()

	query, err := store.Create(ctx, "g1", "structures", domain.QueryParameters{})
	is.NoErr(err)

	_, err = store.Advance(ctx, query.ID, domain.QueryStateStarted, nil)
	is.NoErr(err)
	_, err = store.Advance(ctx, query.ID, domain.QueryStateInProgress, nil)
	is.NoErr(err)

	response := &domain.MergedResponse{Meta: domain.MergedMeta{DataReturned: 3}}
	finished, err := store.Advance(ctx, query.ID, domain.QueryStateFinished, response)
	is.NoErr(err)
	is.Equal(finished.State, domain.QueryStateFinished)
	is.Equal(finished.Response.Meta.DataReturned, 3)
}

func TestGetPublicHidesResponseUntilFinished(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := newTestStore()

	query, err := store.Create(ctx, "g1", "structures", domain.QueryParameters{})
	is.NoErr(err)
	_, err = store.Advance(ctx, query.ID, domain.QueryStateStarted, nil)
	is.NoErr(err)

	public, err := store.GetPublic(ctx, query.ID)
	is.NoErr(err)
	is.Equal(public.Response, nil)
}
