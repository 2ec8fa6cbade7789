package stowage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-stowage/stowage"
	"github.com/go-stowage/stowage/testdata"
)

var ctx = context.Background()

var errStoreFailed = errors.New("store failed")

// failingStore fails on demand, to test the Store error paths.
type failingStore struct {
	storeErr error
	loadErr  error
}

func (s failingStore) Store(_ string, _ any) error { return s.storeErr }

func (s failingStore) Load(_ string, _ any) error { return s.loadErr }

func TestMemoryRepository(t *testing.T) {
	t.Parallel()

	stowage.TestSuite(t, func() stowage.Repository {
		return stowage.NewMemoryRepository()
	})
}

func TestNewMemoryRepository(t *testing.T) {
	t.Parallel()

	t.Run("default", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()
		assert.NotNil(t, repo)
	})

	t.Run("load from store", func(t *testing.T) {
		t.Parallel()

		store := stowage.NewJSONStore(t.TempDir())
		registry := stowage.NewTestRegistry()
		author := testdata.NewAuthor()

		repo := stowage.NewMemoryRepository(stowage.WithStore(store), stowage.WithRegistry(registry))
		repo.Add(ctx, author)
		assert.NoError(t, repo.Commit(ctx))

		restored := stowage.NewMemoryRepository(stowage.WithStore(store), stowage.WithRegistry(registry))

		got, err := restored.Get(ctx, "author", author.ID)
		assert.NoError(t, err)
		assert.Equal(t, author, got)
	})

	t.Run("load from store fails", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			stowage.NewMemoryRepository(stowage.WithStore(failingStore{loadErr: errStoreFailed}))
		})
	})

	t.Run("custom store filename", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		repo := stowage.NewMemoryRepository(
			stowage.WithStore(stowage.NewJSONStore(dir)),
			stowage.WithStoreFilename("authors.json"),
		)

		repo.Add(ctx, testdata.NewAuthor())
		assert.NoError(t, repo.Commit(ctx))

		_, err := os.Stat(filepath.Join(dir, "authors.json"))
		assert.NoError(t, err)
	})
}

func TestMemoryRepository_Commit(t *testing.T) {
	t.Parallel()

	t.Run("store fails", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository(stowage.WithStore(failingStore{storeErr: errStoreFailed}))
		repo.Add(ctx, testdata.NewAuthor())

		err := repo.Commit(ctx)
		assert.ErrorIs(t, err, stowage.ErrCommitFailed)
	})

	t.Run("staged list is cleared even when the store fails", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository(stowage.WithStore(failingStore{storeErr: errStoreFailed}))
		author := testdata.NewAuthor()

		repo.Add(ctx, author)
		assert.Error(t, repo.Commit(ctx))

		// The fold already happened in memory and is not retried.
		got, err := repo.Get(ctx, "author", author.ID)
		assert.NoError(t, err)
		assert.Equal(t, author, got)
	})
}

func TestMemoryRepository_NextID(t *testing.T) {
	t.Parallel()

	t.Run("empty kind starts at zero", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()

		id, err := repo.NextID(ctx, "author")
		assert.NoError(t, err)
		assert.Equal(t, 0, id)
	})

	t.Run("counts committed and staged entries", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()

		author := testdata.NewAuthor()
		author.ID = 41
		repo.Add(ctx, author)
		assert.NoError(t, repo.Commit(ctx))

		id, err := repo.NextID(ctx, "author")
		assert.NoError(t, err)
		assert.Equal(t, 42, id)

		staged := testdata.NewAuthor()
		staged.ID = 99
		repo.Add(ctx, staged)

		id, err = repo.NextID(ctx, "author")
		assert.NoError(t, err)
		assert.Equal(t, 100, id)
	})

	t.Run("non-integer ids", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()

		repo.Add(ctx, testdata.NewNote())
		assert.NoError(t, repo.Commit(ctx))

		_, err := repo.NextID(ctx, "note")
		assert.ErrorIs(t, err, stowage.ErrInvalidEntity)
	})
}

func TestTypedHelpers(t *testing.T) {
	t.Parallel()

	t.Run("kind of", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "author", stowage.KindOf[testdata.Author]())
		assert.Equal(t, "note", stowage.KindOf[testdata.Note]())
	})

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)
		repo.Commit(ctx)

		got, err := stowage.Get[testdata.Author](ctx, repo, author.ID)
		assert.NoError(t, err)
		assert.Equal(t, author, got)

		_, err = stowage.Get[testdata.Book](ctx, repo, author.ID)
		assert.ErrorIs(t, err, stowage.ErrNotFound, "kind is derived from the type parameter")
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)
		repo.Commit(ctx)

		authors, err := stowage.All[testdata.Author](ctx, repo)
		assert.NoError(t, err)
		assert.Equal(t, []testdata.Author{author}, authors)

		books, err := stowage.All[testdata.Book](ctx, repo)
		assert.NoError(t, err)
		assert.Empty(t, books)
	})

	t.Run("search validates attributes on an empty store", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()

		_, err := stowage.Search[testdata.Author](ctx, repo, stowage.Criteria{"middle_name": "X"})
		assert.ErrorIs(t, err, stowage.ErrInvalidAttribute)
	})

	t.Run("search", func(t *testing.T) {
		t.Parallel()

		repo := stowage.NewMemoryRepository()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)
		repo.Commit(ctx)

		authors, err := stowage.Search[testdata.Author](ctx, repo, stowage.Criteria{"country": author.Country})
		assert.NoError(t, err)
		assert.Equal(t, []testdata.Author{author}, authors)
	})
}

func TestMemoryRepository_Ownership(t *testing.T) {
	t.Parallel()

	repo := stowage.NewMemoryRepository()
	author := testdata.NewAuthor()

	repo.Add(ctx, author)
	repo.Commit(ctx)

	// Mutating the caller's copy must not change the committed store.
	original := author
	author.Country = "AQ"

	got, err := repo.Get(ctx, "author", original.ID)
	assert.NoError(t, err)
	assert.Equal(t, original, got)
}
