// Package document implements the document store façade: a uniform
// get/find_one/insert/update/list interface over a collection
// of JSON-like documents keyed by "id", with atomic insert-or-conflict
// semantics. Gateways and queries are both stored this way, each in its
// own named collection.
package document

import (
	"context"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// Store is a type-safe façade over one document collection. T must be
// the Go type the collection's documents decode into (domain.Gateway,
// domain.Query, ...); callers never see the underlying driver types.
type Store[T any] interface {
	// Get returns the document with the given id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (T, error)

	// FindOne returns the first document matching filter (an equality
	// map), or domain.ErrNotFound.
	FindOne(ctx context.Context, filter bson.M) (T, error)

	// Insert adds doc. doc must already have a non-empty "id". Returns
	// domain.ErrIDConflict if a document with that id already exists;
	// concurrent callers racing to insert the same id are guaranteed
	// that exactly one observes a nil error.
	Insert(ctx context.Context, doc T) error

	// Update applies patch (a set of bson field updates) to the document
	// with the given id. Returns domain.ErrNotFound if it doesn't exist.
	Update(ctx context.Context, id string, patch bson.M) error

	// UpdateWhere is Update, but the update only applies if filter (in
	// addition to matching id) also matches the document's current
	// state. Used by the query store to make state transitions atomic.
	// Returns domain.ErrNotFound if no document matched both id and
	// filter.
	UpdateWhere(ctx context.Context, id string, filter bson.M, patch bson.M) error

	// List returns documents matching filter, sorted by sort, after
	// skipping skip and limiting to limit (limit <= 0 means unlimited),
	// plus the total count of documents matching filter regardless of
	// skip/limit.
	List(ctx context.Context, filter bson.M, sort bson.D, skip, limit int64) ([]T, int64, error)
}

// notFound is a convenience for implementations to return a zero T
// alongside domain.ErrNotFound.
func notFound[T any]() (T, error) {
	var zero T
	return zero, domain.ErrNotFound
}
