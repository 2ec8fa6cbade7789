package stowage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

const defaultStoreFilename = "stowage.json"

// NewMemoryRepository returns the in-memory reference implementation of
// Repository. It is designed for one unit of work per instance: construct,
// stage mutations, Commit, discard.
//
// By default nothing is persisted. Use WithStore to load the committed store
// from a Store on construction and write it back on every Commit; loading
// requires a Registry via WithRegistry to decode the records.
func NewMemoryRepository(opts ...Option) *MemoryRepository {
	repo := &MemoryRepository{
		Mutex:     &sync.Mutex{},
		committed: map[string]*collection{},
		staged:    &stage{},
		config: repoConfig{
			store:    noopStore{},
			filename: defaultStoreFilename,
		},
	}

	for _, opt := range opts {
		opt(&repo.config)
	}

	if err := repo.load(); err != nil {
		panic("could not load data for memory repository from store: " + err.Error())
	}

	return repo
}

// MemoryRepository implements Repository with a committed store partitioned
// by kind and an ordered staged-operation list. Reads observe committed
// state only; Commit folds the staged list in program order.
//
// All methods lock the embedded Mutex, so a repository extended with new
// methods can lock the same mutex. The documented concurrency model is still
// one instance per unit of work, serialised by the caller.
type MemoryRepository struct {
	// Mutex is embedded, so that repositories who extend MemoryRepository
	// can lock the same mutex as the built-in methods.
	*sync.Mutex

	committed map[string]*collection
	staged    *stage

	config repoConfig
}

var _ Repository = (*MemoryRepository)(nil)

// collection holds the committed entities of one kind. order lists the ids
// by first committed insertion and drives All and Search, so both are stable
// across calls.
type collection struct {
	entities map[ID]Entity
	order    []ID
}

func newCollection() *collection {
	return &collection{entities: map[ID]Entity{}, order: []ID{}}
}

func (c *collection) insert(id ID, entity Entity) {
	if _, exists := c.entities[id]; !exists {
		c.order = append(c.order, id)
	}

	c.entities[id] = entity
}

func (c *collection) remove(id ID) {
	if _, exists := c.entities[id]; !exists {
		return
	}

	delete(c.entities, id)

	if i := slices.Index(c.order, id); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}

func (repo *MemoryRepository) Add(_ context.Context, entity Entity) error {
	k, err := identityOf(entity)
	if err != nil {
		return err
	}

	repo.Lock()
	defer repo.Unlock()

	// A pending delete of the same key is superseded by folding in program
	// order, so the re-add nets to an update on Commit.
	repo.staged.add(k, entity)

	return nil
}

func (repo *MemoryRepository) Delete(_ context.Context, entity Entity) error {
	k, err := identityOf(entity)
	if err != nil {
		return err
	}

	repo.Lock()
	defer repo.Unlock()

	return repo.staged.delete(k, repo.isCommitted(k))
}

func (repo *MemoryRepository) isCommitted(k key) bool {
	col, ok := repo.committed[k.kind]
	if !ok {
		return false
	}

	_, ok = col.entities[k.id]

	return ok
}

func (repo *MemoryRepository) Get(_ context.Context, kind string, id ID) (Entity, error) {
	repo.Lock()
	defer repo.Unlock()

	if col, ok := repo.committed[kind]; ok {
		if entity, ok := col.entities[id]; ok {
			return entity, nil
		}
	}

	return nil, fmt.Errorf("%w: no %s with id %v", ErrNotFound, kind, id)
}

func (repo *MemoryRepository) All(_ context.Context, kind string) ([]Entity, error) {
	repo.Lock()
	defer repo.Unlock()

	result := []Entity{}

	col, ok := repo.committed[kind]
	if !ok {
		return result, nil
	}

	for _, id := range col.order {
		result = append(result, col.entities[id])
	}

	return result, nil
}

func (repo *MemoryRepository) Search(_ context.Context, kind string, criteria Criteria) ([]Entity, error) {
	repo.Lock()
	defer repo.Unlock()

	result := []Entity{}

	col, ok := repo.committed[kind]
	if !ok {
		return result, nil
	}

	for _, id := range col.order {
		entity := col.entities[id]

		match, err := criteria.matches(entity)
		if err != nil {
			return nil, err
		}

		if match {
			result = append(result, entity)
		}
	}

	return result, nil
}

// Commit folds the staged operations into the committed store, in staging
// order, and clears the staged list unconditionally: the fold operates
// purely in memory and cannot partially fail. A configured Store is written
// afterwards; its failure surfaces as ErrCommitFailed, but the in-memory
// state is already folded at that point.
func (repo *MemoryRepository) Commit(_ context.Context) error {
	repo.Lock()
	defer repo.Unlock()

	for _, op := range repo.staged.ops {
		col, ok := repo.committed[op.key.kind]
		if !ok {
			col = newCollection()
			repo.committed[op.key.kind] = col
		}

		switch op.op {
		case opAdd:
			col.insert(op.key.id, op.entity)
		case opDelete:
			col.remove(op.key.id)
		}
	}

	repo.staged.clear()

	if err := repo.config.store.Store(repo.config.filename, repo.snapshot()); err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	return nil
}

// NextID returns the next free integer id for the given kind: one greater
// than the highest id across committed and staged entries, starting at 0.
// It is an extension beyond the Repository contract, for callers that want
// auto-incremented ids. Fails if the kind holds non-integer ids.
func (repo *MemoryRepository) NextID(_ context.Context, kind string) (int, error) {
	repo.Lock()
	defer repo.Unlock()

	next := 0

	bump := func(id ID) error {
		n, ok := intID(id)
		if !ok {
			return fmt.Errorf("%w: %s has non-integer ids", ErrInvalidEntity, kind)
		}

		if n+1 > next {
			next = n + 1
		}

		return nil
	}

	if col, ok := repo.committed[kind]; ok {
		for id := range col.entities {
			if err := bump(id); err != nil {
				return 0, err
			}
		}
	}

	for _, op := range repo.staged.ops {
		if op.op != opAdd || op.key.kind != kind {
			continue
		}

		if err := bump(op.key.id); err != nil {
			return 0, err
		}
	}

	return next, nil
}

func intID(id ID) (int, bool) {
	switch n := id.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// snapshot returns the committed store as kind -> entities in insertion
// order, the persisted representation understood by load.
func (repo *MemoryRepository) snapshot() map[string][]Entity {
	data := make(map[string][]Entity, len(repo.committed))

	for kind, col := range repo.committed {
		entities := make([]Entity, 0, len(col.order))
		for _, id := range col.order {
			entities = append(entities, col.entities[id])
		}

		data[kind] = entities
	}

	return data
}

func (repo *MemoryRepository) load() error {
	var raw map[string][]json.RawMessage

	err := repo.config.store.Load(repo.config.filename, &raw)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for kind, records := range raw {
		col := newCollection()
		repo.committed[kind] = col

		for _, record := range records {
			entity, err := repo.config.registry.decode(kind, record)
			if err != nil {
				return err
			}

			k, err := identityOf(entity)
			if err != nil {
				return err
			}

			col.insert(k.id, entity)
		}
	}

	return nil
}
