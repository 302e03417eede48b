// Package registry implements the gateway registry: it canonicalises a
// set of member databases into a stable gateway id,
// either by returning an existing gateway whose membership matches, or
// by interning a new one.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/repositories/document"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/exp/slices"
)

// maxGeneratedIDLength bounds a freshly-interned gateway id: it must be
// URL-safe and no longer than 32 characters.
const maxGeneratedIDLength = 32

// Registry is the gateway registry's public contract.
type Registry interface {
	// ResolveOrCreate resolves an existing gateway or interns a new one.
	// databases is the set of member database refs as received from the
	// caller;
	// explicitID, if non-empty, bypasses interning entirely. created
	// reports whether a new gateway record was inserted (for the
	// caller to pick 201 vs 200).
	ResolveOrCreate(ctx context.Context, refs []domain.DatabaseRef, explicitID string) (gateway domain.Gateway, created bool, err error)

	// GetGateway returns the gateway with the given id.
	GetGateway(ctx context.Context, id string) (domain.Gateway, error)

	// ListGateways returns a page of gateways matching filter.
	ListGateways(ctx context.Context, filter bson.M, skip, limit int64) ([]domain.Gateway, int64, error)

	// RegisterDatabase inserts or replaces a database descriptor so it
	// can later be referred to by id alone.
	RegisterDatabase(ctx context.Context, db domain.Database) error

	// GetDatabase returns a previously registered database descriptor.
	GetDatabase(ctx context.Context, id string) (domain.Database, error)
}

type registry struct {
	gateways  document.Store[domain.Gateway]
	databases document.Store[domain.Database]
}

// New builds a Registry over the given document stores.
func New(gateways document.Store[domain.Gateway], databases document.Store[domain.Database]) Registry {
	return &registry{gateways: gateways, databases: databases}
}

func (r *registry) ResolveOrCreate(ctx context.Context, refs []domain.DatabaseRef, explicitID string) (domain.Gateway, bool, error) {
	databases, err := r.resolveRefs(ctx, refs)
	if err != nil {
		return domain.Gateway{}, false, err
	}

	if explicitID != "" {
		gateway := domain.Gateway{
			ID:            explicitID,
			Databases:     databases,
			DatabaseIDSet: nil,
			Explicit:      true,
		}
		if err := r.gateways.Insert(ctx, gateway); err != nil {
			if errors.Is(err, domain.ErrIDConflict) {
				return domain.Gateway{}, false, domain.ErrGatewayExists
			}
			return domain.Gateway{}, false, err
		}
		return gateway, true, nil
	}

	idSet := canonicalSet(databases)

	existing, err := r.gateways.FindOne(ctx, bson.M{"database_id_set": idSet})
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Gateway{}, false, err
	}

	gateway := domain.Gateway{
		ID:            generateID(),
		Databases:     databases,
		DatabaseIDSet: idSet,
	}

	if err := r.gateways.Insert(ctx, gateway); err != nil {
		if !errors.Is(err, domain.ErrIDConflict) {
			return domain.Gateway{}, false, err
		}

		// Lost the insert race; the other writer's record must now be
		// findable. A second miss means two writers both believed they
		// were inserting fresh state and the store's uniqueness
		// guarantee didn't hold - a bug, not a retry-able condition.
		existing, err := r.gateways.FindOne(ctx, bson.M{"database_id_set": idSet})
		if err != nil {
			return domain.Gateway{}, false, domain.ErrRegistryInconsistent
		}
		return existing, false, nil
	}

	return gateway, true, nil
}

// resolveRefs turns DatabaseRefs into full Database descriptors,
// looking up reference-only ones against the databases collection.
func (r *registry) resolveRefs(ctx context.Context, refs []domain.DatabaseRef) ([]domain.Database, error) {
	databases := make([]domain.Database, 0, len(refs))
	for _, ref := range refs {
		if ref.IsReferenceOnly() {
			db, err := r.databases.Get(ctx, ref.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDatabase, ref.ID)
				}
				return nil, err
			}
			databases = append(databases, db)
			continue
		}
		databases = append(databases, ref.Database())
	}
	return databases, nil
}

func (r *registry) GetGateway(ctx context.Context, id string) (domain.Gateway, error) {
	return r.gateways.Get(ctx, id)
}

func (r *registry) ListGateways(ctx context.Context, filter bson.M, skip, limit int64) ([]domain.Gateway, int64, error) {
	return r.gateways.List(ctx, filter, bson.D{{Key: "id", Value: 1}}, skip, limit)
}

func (r *registry) RegisterDatabase(ctx context.Context, db domain.Database) error {
	if err := r.databases.Insert(ctx, db); err != nil {
		if errors.Is(err, domain.ErrIDConflict) {
			return r.databases.Update(ctx, db.ID, bson.M{
				"name":     db.Name,
				"base_url": db.BaseURL,
				"version":  db.Version,
				"provider": db.Provider,
			})
		}
		return err
	}
	return nil
}

func (r *registry) GetDatabase(ctx context.Context, id string) (domain.Database, error) {
	return r.databases.Get(ctx, id)
}

// canonicalSet sorts databases' ids ascending: membership is looked up
// by this sorted set, but a gateway's Databases field keeps the
// caller's declared order for output.
func canonicalSet(databases []domain.Database) []string {
	ids := make([]string, len(databases))
	for i, d := range databases {
		ids[i] = d.ID
	}
	slices.Sort(ids)
	return ids
}

// generateID derives a URL-safe gateway id no longer than
// maxGeneratedIDLength from a fresh UUID, dropping the hyphens (their
// removal exactly accounts for a standard UUID's 36 vs. 32 hex digits).
func generateID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(id) > maxGeneratedIDLength {
		id = id[:maxGeneratedIDLength]
	}
	return id
}
