package stowage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerEntityPrefix = "e:"
	badgerOrderPrefix  = "o:"
)

// badgerLogger bridges badger's internal logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

// OpenBadger returns an implementation of Repository on top of a Badger
// database at the given path, creating it if necessary. An empty path opens
// a throwaway in-memory database, handy for tests.
//
// Entities are stored as JSON documents under per-kind keys together with a
// per-kind insertion-order record, so All keeps the contract's stable
// insertion order. A Registry is required via WithRegistry.
func OpenBadger(path string, opts ...Option) (*BadgerRepository, error) {
	config := repoConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&config)
	}

	if config.registry == nil {
		return nil, fmt.Errorf("%w: badger repository needs a registry, use WithRegistry", errUnknownKind)
	}

	options := badger.DefaultOptions(path)
	if path == "" {
		// Small memtables keep throwaway test databases cheap.
		options = options.WithInMemory(true).WithMemTableSize(8 << 20)
	}

	options.Logger = &badgerLogger{logger: config.logger}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("could not open badger database: %w", err)
	}

	return &BadgerRepository{
		db:       db,
		registry: config.registry,
		staged:   &stage{},
	}, nil
}

// BadgerRepository implements Repository over a Badger key-value store.
// Mutations are staged in memory and folded into the database inside one
// badger transaction on Commit. The staged list is discarded on a failed
// commit; retrying is the caller's decision.
type BadgerRepository struct {
	mu sync.Mutex

	db       *badger.DB
	registry *Registry
	staged   *stage
}

var _ Repository = (*BadgerRepository)(nil)

// Close releases the underlying database.
func (repo *BadgerRepository) Close() error {
	if err := repo.db.Close(); err != nil {
		return fmt.Errorf("could not close badger database: %w", err)
	}

	return nil
}

func entityKey(kind, token string) []byte {
	return []byte(badgerEntityPrefix + kind + "/" + token)
}

func orderKey(kind string) []byte {
	return []byte(badgerOrderPrefix + kind)
}

func (repo *BadgerRepository) Add(_ context.Context, entity Entity) error {
	k, err := identityOf(entity)
	if err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.staged.add(k, entity)

	return nil
}

func (repo *BadgerRepository) Delete(_ context.Context, entity Entity) error {
	k, err := identityOf(entity)
	if err != nil {
		return err
	}

	committed, err := repo.exists(k)
	if err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	return repo.staged.delete(k, committed)
}

func (repo *BadgerRepository) exists(k key) (bool, error) {
	err := repo.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(entityKey(k.kind, idToken(k.id)))

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("could not read entity: %w", err)
	}

	return true, nil
}

func (repo *BadgerRepository) Get(_ context.Context, kind string, id ID) (Entity, error) {
	var entity Entity

	err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(kind, idToken(id)))
		if err != nil {
			return err
		}

		return item.Value(func(raw []byte) error {
			entity, err = repo.registry.decode(kind, raw)

			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: no %s with id %v", ErrNotFound, kind, id)
	}

	if err != nil {
		return nil, fmt.Errorf("could not read entity: %w", err)
	}

	return entity, nil
}

func (repo *BadgerRepository) All(_ context.Context, kind string) ([]Entity, error) {
	result := []Entity{}

	err := repo.db.View(func(txn *badger.Txn) error {
		tokens, err := readOrder(txn, kind)
		if err != nil {
			return err
		}

		for _, token := range tokens {
			item, err := txn.Get(entityKey(kind, token))
			if err != nil {
				return err
			}

			err = item.Value(func(raw []byte) error {
				entity, err := repo.registry.decode(kind, raw)
				if err != nil {
					return err
				}

				result = append(result, entity)

				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not read entities: %w", err)
	}

	return result, nil
}

// Search scans all committed entities of the kind linearly, like every
// stowage backend.
func (repo *BadgerRepository) Search(ctx context.Context, kind string, criteria Criteria) ([]Entity, error) {
	entities, err := repo.All(ctx, kind)
	if err != nil {
		return nil, err
	}

	result := []Entity{}

	for _, entity := range entities {
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

// Commit folds the staged operations into the database inside a single
// badger transaction, in staging order, updating the per-kind order records
// along the way. The staged list is cleared no matter the outcome.
func (repo *BadgerRepository) Commit(_ context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if len(repo.staged.ops) == 0 {
		return nil
	}

	defer repo.staged.clear()

	orders := map[string][]string{}

	err := repo.db.Update(func(txn *badger.Txn) error {
		for _, op := range repo.staged.ops {
			kind, token := op.key.kind, idToken(op.key.id)

			if _, ok := orders[kind]; !ok {
				tokens, err := readOrder(txn, kind)
				if err != nil {
					return err
				}

				orders[kind] = tokens
			}

			switch op.op {
			case opAdd:
				raw, err := encode(op.entity)
				if err != nil {
					return err
				}

				if err := txn.Set(entityKey(kind, token), raw); err != nil {
					return err
				}

				if !slices.Contains(orders[kind], token) {
					orders[kind] = append(orders[kind], token)
				}
			case opDelete:
				if err := txn.Delete(entityKey(kind, token)); err != nil {
					return err
				}

				if i := slices.Index(orders[kind], token); i >= 0 {
					orders[kind] = slices.Delete(orders[kind], i, i+1)
				}
			}
		}

		for kind, tokens := range orders {
			raw, err := json.Marshal(tokens)
			if err != nil {
				return err
			}

			if err := txn.Set(orderKey(kind), raw); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	return nil
}

// readOrder returns the committed insertion order of a kind as id tokens.
func readOrder(txn *badger.Txn, kind string) ([]string, error) {
	item, err := txn.Get(orderKey(kind))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []string{}, nil
	}

	if err != nil {
		return nil, err
	}

	var tokens []string

	err = item.Value(func(raw []byte) error {
		return json.Unmarshal(raw, &tokens)
	})
	if err != nil {
		return nil, err
	}

	return tokens, nil
}
