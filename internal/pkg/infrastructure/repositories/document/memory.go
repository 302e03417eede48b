package document

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// memoryStore is an in-process Store[T] fake used by tests in place of a
// live MongoDB. Insert is atomic with respect to "id": of concurrent
// racers inserting the same id, exactly one sees a nil error. No other
// field is kept unique, so the extra unique indexes NewMongoStore can
// create (such as "database_id_set" on gateways) have no counterpart
// here.
type memoryStore[T any] struct {
	mu   sync.Mutex
	docs map[string]T
	// order preserves insertion order so List's output is deterministic.
	order []string
}

// NewMemoryStore returns an empty in-memory Store[T].
func NewMemoryStore[T any]() Store[T] {
	return &memoryStore[T]{docs: make(map[string]T)}
}

func (s *memoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return notFound[T]()
	}
	return doc, nil
}

func (s *memoryStore[T]) FindOne(ctx context.Context, filter bson.M) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if matches(s.docs[id], filter) {
			return s.docs[id], nil
		}
	}
	return notFound[T]()
}

func (s *memoryStore[T]) Insert(ctx context.Context, doc T) error {
	id, ok := idOf(doc)
	if !ok || id == "" {
		return domain.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return domain.ErrIDConflict
	}

	s.docs[id] = doc
	s.order = append(s.order, id)
	return nil
}

func (s *memoryStore[T]) Update(ctx context.Context, id string, patch bson.M) error {
	return s.UpdateWhere(ctx, id, nil, patch)
}

func (s *memoryStore[T]) UpdateWhere(ctx context.Context, id string, filter bson.M, patch bson.M) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if filter != nil && !matches(doc, filter) {
		return domain.ErrNotFound
	}

	updated, err := applyPatch(doc, patch)
	if err != nil {
		return err
	}

	s.docs[id] = updated
	return nil
}

func (s *memoryStore[T]) List(ctx context.Context, filter bson.M, sort_ bson.D, skip, limit int64) ([]T, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]T, 0, len(s.order))
	for _, id := range s.order {
		if matches(s.docs[id], filter) {
			matched = append(matched, s.docs[id])
		}
	}

	total := int64(len(matched))

	if len(sort_) > 0 {
		sortDocs(matched, sort_)
	}

	if skip > 0 {
		if skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[skip:]
		}
	}
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}

	return matched, total, nil
}

// idOf reads the bson-encoded "id" field off an arbitrary document value.
func idOf(doc any) (string, bool) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", false
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return "", false
	}
	id, ok := m["id"].(string)
	return id, ok
}

// matches reports whether doc's bson encoding satisfies filter as a flat
// equality map. It is deliberately limited to what the registry and
// query store actually issue: equality on top-level keys, no dotted
// paths and no operators.
func matches(doc any, filter bson.M) bool {
	if len(filter) == 0 {
		return true
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		return false
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return false
	}

	for path, want := range filter {
		if !fieldEquals(m, path, want) {
			return false
		}
	}
	return true
}

func fieldEquals(doc bson.M, path string, want any) bool {
	got, ok := lookup(doc, path)
	if !ok {
		return false
	}
	return deepEqual(got, want)
}

func deepEqual(a, b any) bool {
	switch want := b.(type) {
	case []string:
		gotSlice, ok := toStringSlice(a)
		if !ok || len(gotSlice) != len(want) {
			return false
		}
		for i := range want {
			if gotSlice[i] != want[i] {
				return false
			}
		}
		return true
	default:
		// A decoded document holds plain strings, while filters carry
		// typed values such as domain.QueryState: compare string kinds
		// by value rather than by dynamic type.
		av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
		if av.IsValid() && bv.IsValid() && av.Kind() == reflect.String && bv.Kind() == reflect.String {
			return av.String() == bv.String()
		}
		return a == b
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case bson.A:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// lookup resolves a literal bson key, e.g. "database_id_set", against a
// decoded document map.
func lookup(doc bson.M, path string) (any, bool) {
	v, ok := doc[path]
	return v, ok
}

// applyPatch re-marshals doc merged with patch's top-level keys. It is
// intentionally limited to the flat $set-style patches the query store
// and registry issue.
func applyPatch[T any](doc T, patch bson.M) (T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		var zero T
		return zero, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		var zero T
		return zero, err
	}

	for k, v := range patch {
		m[k] = v
	}

	merged, err := bson.Marshal(m)
	if err != nil {
		var zero T
		return zero, err
	}

	var out T
	if err := bson.Unmarshal(merged, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func sortDocs[T any](docs []T, sortSpec bson.D) {
	if len(sortSpec) == 0 {
		return
	}
	key := sortSpec[0].Key
	ascending := true
	if n, ok := sortSpec[0].Value.(int); ok && n < 0 {
		ascending = false
	}

	fieldAt := func(doc T) string {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return ""
		}
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			return ""
		}
		v, _ := lookup(m, key)
		return fmt.Sprint(v)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		vi, vj := fieldAt(docs[i]), fieldAt(docs[j])
		if ascending {
			return vi < vj
		}
		return vi > vj
	})
}
