package stowage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// squirrel recommends building statements from one configured builder.
var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

const sqliteTable = "entities"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entities (
	pos  INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	data TEXT NOT NULL,
	UNIQUE (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities (kind);
`

// OpenSQLite opens a SQLite database for use with NewSQLiteRepository.
// Use ":memory:" for a throwaway in-memory database.
func OpenSQLite(dsn string) (*sql.DB, error) {
	inMemory := dsn == ":memory:"
	if !inMemory {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if inMemory {
		// Every pooled connection would get its own empty in-memory
		// database, so restrict the pool to a single connection.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// NewSQLiteRepository returns an implementation of Repository on top of a
// SQLite database. Entities are stored as JSON documents in a single table,
// keyed by (kind, id), with their first-insertion position preserved so All
// keeps the contract's stable insertion order.
//
// A Registry is required via WithRegistry to decode stored records back into
// their concrete entity types.
func NewSQLiteRepository(db *sql.DB, opts ...Option) (*SQLiteRepository, error) {
	config := repoConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	if config.registry == nil {
		return nil, fmt.Errorf("%w: sqlite repository needs a registry, use WithRegistry", errUnknownKind)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("could not create schema: %w", err)
	}

	return &SQLiteRepository{
		db:       db,
		registry: config.registry,
		staged:   &stage{},
	}, nil
}

// SQLiteRepository implements Repository over a SQLite database. Mutations
// are staged in memory and folded into the database inside one transaction
// on Commit, so Commit either applies every staged operation or none. The
// staged list is discarded on a failed commit; retrying is the caller's
// decision.
type SQLiteRepository struct {
	mu sync.Mutex

	db       *sql.DB
	registry *Registry
	staged   *stage
}

var _ Repository = (*SQLiteRepository)(nil)

// idToken maps an id to its TEXT column representation. The prefix keeps
// string and integer ids of the same spelling apart.
func idToken(id ID) string {
	switch v := id.(type) {
	case string:
		return "s:" + v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, _ := intID(v)

		return "i:" + strconv.Itoa(n)
	default:
		return fmt.Sprintf("s:%v", v)
	}
}

func (repo *SQLiteRepository) Add(_ context.Context, entity Entity) error {
	k, err := identityOf(entity)
	if err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.staged.add(k, entity)

	return nil
}

func (repo *SQLiteRepository) Delete(ctx context.Context, entity Entity) error {
	k, err := identityOf(entity)
	if err != nil {
		return err
	}

	committed, err := repo.exists(ctx, k)
	if err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	return repo.staged.delete(k, committed)
}

func (repo *SQLiteRepository) exists(ctx context.Context, k key) (bool, error) {
	query, args, err := sq.Select("1").From(sqliteTable).
		Where(squirrel.Eq{"kind": k.kind, "id": idToken(k.id)}).
		Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("could not build query: %w", err)
	}

	var one int

	err = repo.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("could not query entity: %w", err)
	}

	return true, nil
}

func (repo *SQLiteRepository) Get(ctx context.Context, kind string, id ID) (Entity, error) {
	query, args, err := sq.Select("data").From(sqliteTable).
		Where(squirrel.Eq{"kind": kind, "id": idToken(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	var raw []byte

	err = repo.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s with id %v", ErrNotFound, kind, id)
	}

	if err != nil {
		return nil, fmt.Errorf("could not query entity: %w", err)
	}

	return repo.registry.decode(kind, raw)
}

func (repo *SQLiteRepository) All(ctx context.Context, kind string) ([]Entity, error) {
	query, args, err := sq.Select("data").From(sqliteTable).
		Where(squirrel.Eq{"kind": kind}).
		OrderBy("pos ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query entities: %w", err)
	}
	defer rows.Close()

	result := []Entity{}

	for rows.Next() {
		var raw []byte

		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("could not scan entity: %w", err)
		}

		entity, err := repo.registry.decode(kind, raw)
		if err != nil {
			return nil, err
		}

		result = append(result, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate entities: %w", err)
	}

	return result, nil
}

// Search scans all committed entities of the kind linearly, matching the
// decoded attributes in memory. The reference semantics over throughput
// trade-off of the contract applies here too.
func (repo *SQLiteRepository) Search(ctx context.Context, kind string, criteria Criteria) ([]Entity, error) {
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
// transaction, in staging order. The staged list is cleared no matter the
// outcome; a failure rolls the transaction back and surfaces as
// ErrCommitFailed.
func (repo *SQLiteRepository) Commit(ctx context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if len(repo.staged.ops) == 0 {
		return nil
	}

	defer repo.staged.clear()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	defer tx.Rollback()

	for _, op := range repo.staged.ops {
		switch op.op {
		case opAdd:
			raw, err := encode(op.entity)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCommitFailed, err)
			}

			query, args, err := sq.Insert(sqliteTable).
				Columns("kind", "id", "data").
				Values(op.key.kind, idToken(op.key.id), raw).
				Suffix("ON CONFLICT(kind, id) DO UPDATE SET data = excluded.data").ToSql()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCommitFailed, err)
			}

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("%w: %v", ErrCommitFailed, err)
			}
		case opDelete:
			query, args, err := sq.Delete(sqliteTable).
				Where(squirrel.Eq{"kind": op.key.kind, "id": idToken(op.key.id)}).ToSql()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCommitFailed, err)
			}

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("%w: %v", ErrCommitFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	return nil
}

// NextID returns the next free integer id for the given kind, one greater
// than the highest id across committed and staged entries. An extension
// beyond the Repository contract, mirroring MemoryRepository.NextID.
func (repo *SQLiteRepository) NextID(ctx context.Context, kind string) (int, error) {
	entities, err := repo.All(ctx, kind)
	if err != nil {
		return 0, err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

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

	for _, entity := range entities {
		id, err := IdentifierOf(entity)
		if err != nil {
			return 0, err
		}

		if err := bump(id); err != nil {
			return 0, err
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
