package stowage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get and Delete when the referenced key is
	// absent from both the committed store and the staged additions.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidEntity marks a caller bug: a nil entity or one whose id is
	// missing, empty, or of an unsupported type.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidAttribute marks a search criterion that names no declared
	// attribute of the queried kind.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrStagingConflict marks an irreconcilable sequence of staged
	// operations on the same key. The backends shipped with stowage
	// reconcile a re-add after a pending delete, so they never return it,
	// but backends that cannot reconcile surface it through this sentinel.
	ErrStagingConflict = errors.New("staging conflict")

	// ErrCommitFailed wraps backend-specific persistence failures during
	// Commit. The pure in-memory backend cannot fail to commit.
	ErrCommitFailed = errors.New("commit failed")
)

// Repository is the capability set every storage backend implements
// identically. Add and Delete stage mutations; Get, All, and Search observe
// committed state only; Commit atomically folds the staged operations into
// the committed store, in staging order, and clears the staged list.
//
// A repository instance holds entities of arbitrary kinds, partitioned by
// Entity.Kind, so identically named attributes of different kinds never
// cross-match.
type Repository interface {
	// Add stages the addition of entity. The entity stays invisible to
	// reads until Commit. A staged addition after a pending delete of the
	// same key supersedes the delete.
	Add(ctx context.Context, entity Entity) error

	// Delete stages the removal of entity. Deleting a staged-but-uncommitted
	// addition cancels it to a net no-op. Fails with ErrNotFound if the key
	// is in neither the committed store nor the staged additions.
	Delete(ctx context.Context, entity Entity) error

	// Get returns the committed entity stored under (kind, id).
	Get(ctx context.Context, kind string, id ID) (Entity, error)

	// All returns every committed entity of kind, ordered by first
	// insertion into the committed store, stable across calls.
	All(ctx context.Context, kind string) ([]Entity, error)

	// Search returns the committed entities of kind whose attributes equal
	// every criterion value. No match is an empty slice, not an error.
	Search(ctx context.Context, kind string, criteria Criteria) ([]Entity, error)

	// Commit folds all staged additions and deletions into the committed
	// store, in staging order. Whether the staged list survives a failed
	// commit is backend-defined and documented on the backend; all stowage
	// backends discard it.
	Commit(ctx context.Context) error
}

// Criteria maps attribute names to expected values. Search matches an entity
// when every criterion equals the entity's attribute of the same name,
// a logical AND. Values are compared with Go equality, so a criterion value
// must have the attribute's exact type.
type Criteria map[string]any

// matches reports whether the entity satisfies every criterion.
func (c Criteria) matches(entity Entity) (bool, error) {
	attrs := entity.Attributes()

	for name, want := range c {
		got, ok := attrs[name]
		if !ok {
			return false, fmt.Errorf("%w: %s has no attribute %q", ErrInvalidAttribute, entity.Kind(), name)
		}

		if got != want {
			return false, nil
		}
	}

	return true, nil
}

// KindOf returns the kind name of the entity type E,
// derived from its zero value.
func KindOf[E Entity]() string {
	var entity E

	return entity.Kind()
}

// Get is the typed counterpart of Repository.Get:
// the kind is derived from E and the result asserted to it.
func Get[E Entity](ctx context.Context, repo Repository, id ID) (E, error) {
	entity, err := repo.Get(ctx, KindOf[E](), id)
	if err != nil {
		return *new(E), err
	}

	typed, ok := entity.(E)
	if !ok {
		return *new(E), fmt.Errorf("%w: stored entity is %T not %T", ErrInvalidEntity, entity, *new(E))
	}

	return typed, nil
}

// All is the typed counterpart of Repository.All.
func All[E Entity](ctx context.Context, repo Repository) ([]E, error) {
	entities, err := repo.All(ctx, KindOf[E]())
	if err != nil {
		return nil, err
	}

	return assertAll[E](entities)
}

// Search is the typed counterpart of Repository.Search. It validates the
// criteria against the declared attributes of E before querying, so an
// unknown attribute fails with ErrInvalidAttribute even on an empty store.
func Search[E Entity](ctx context.Context, repo Repository, criteria Criteria) ([]E, error) {
	var zero E

	attrs := zero.Attributes()
	for name := range criteria {
		if _, ok := attrs[name]; !ok {
			return nil, fmt.Errorf("%w: %s has no attribute %q", ErrInvalidAttribute, zero.Kind(), name)
		}
	}

	entities, err := repo.Search(ctx, zero.Kind(), criteria)
	if err != nil {
		return nil, err
	}

	return assertAll[E](entities)
}

func assertAll[E Entity](entities []Entity) ([]E, error) {
	typed := make([]E, 0, len(entities))

	for _, entity := range entities {
		e, ok := entity.(E)
		if !ok {
			return nil, fmt.Errorf("%w: stored entity is %T not %T", ErrInvalidEntity, entity, *new(E))
		}

		typed = append(typed, e)
	}

	return typed, nil
}
