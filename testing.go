package stowage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-stowage/stowage/testdata"
)

// NewTestRegistry returns a Registry with every testdata kind registered.
// Backends needing a Registry pass it to their constructor before running
// TestSuite.
func NewTestRegistry() *Registry {
	registry := NewRegistry()

	Register[testdata.Author](registry)
	Register[testdata.Book](registry)
	Register[testdata.Note](registry)

	return registry
}

// TestSuite asserts the complete Repository contract against the given
// constructor. Every backend has to pass it unchanged, that is the library's
// substitutability promise. newRepo is called per subtest and must return a
// fresh, empty repository.
func TestSuite(t *testing.T, newRepo func() Repository) { //nolint:tparallel,maintidx // t.Parallel can only be called ones! The caller decides
	t.Helper()

	if newRepo == nil {
		t.Fatal("repository constructor is nil")
	}

	ctx := context.Background()

	t.Run("new", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		assert.NotNil(t, repo)
	})

	t.Run("uncommitted changes are invisible", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		author := testdata.NewAuthor()

		err := repo.Add(ctx, author)
		assert.NoError(t, err)

		_, err = repo.Get(ctx, author.Kind(), author.ID)
		assert.ErrorIs(t, err, ErrNotFound, "staged addition must not be readable")

		all, err := repo.All(ctx, author.Kind())
		assert.NoError(t, err)
		assert.Empty(t, all)

		found, err := repo.Search(ctx, author.Kind(), Criteria{"first_name": author.FirstName})
		assert.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("get after commit", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)

		err := repo.Commit(ctx)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, author.Kind(), author.ID)
		assert.NoError(t, err)
		assert.Equal(t, author, got, "structural equality across all attributes")
	})

	t.Run("all is stable and in insertion order", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		authors := []testdata.Author{testdata.NewAuthor(), testdata.NewAuthor(), testdata.NewAuthor()}

		for _, a := range authors {
			repo.Add(ctx, a)
		}
		repo.Commit(ctx)

		first, err := repo.All(ctx, "author")
		assert.NoError(t, err)
		assert.Len(t, first, len(authors))

		for i, a := range authors {
			assert.Equal(t, a, first[i], "order of first committed insertion")
		}

		second, err := repo.All(ctx, "author")
		assert.NoError(t, err)
		assert.Equal(t, first, second, "repeated calls after the same commit")
	})

	t.Run("all of unknown kind is empty", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		all, err := repo.All(ctx, "author")
		assert.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("delete round trip", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)
		repo.Commit(ctx)

		err := repo.Delete(ctx, author)
		assert.NoError(t, err)

		_, err = repo.Get(ctx, author.Kind(), author.ID)
		assert.NoError(t, err, "staged delete is invisible until commit")

		assert.NoError(t, repo.Commit(ctx))

		_, err = repo.Get(ctx, author.Kind(), author.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		all, _ := repo.All(ctx, author.Kind())
		assert.Empty(t, all)
	})

	t.Run("delete cancels pending add", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)

		err := repo.Delete(ctx, author)
		assert.NoError(t, err, "a staged addition can be deleted")

		err = repo.Commit(ctx)
		assert.NoError(t, err)

		all, err := repo.All(ctx, author.Kind())
		assert.NoError(t, err)
		assert.Empty(t, all, "add and delete of a never-committed key is a net no-op")
	})

	t.Run("delete unknown entity", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		err := repo.Delete(ctx, testdata.NewAuthor())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("re-add supersedes pending delete", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		author := testdata.NewAuthor()

		repo.Add(ctx, author)
		repo.Commit(ctx)

		repo.Delete(ctx, author)

		updated := author
		updated.Country = "AQ"
		repo.Add(ctx, updated)

		err := repo.Commit(ctx)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, author.Kind(), author.ID)
		assert.NoError(t, err)
		assert.Equal(t, updated, got, "re-add after pending delete nets to an update")
	})

	t.Run("search", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		us := testdata.NewAuthor()
		us.FirstName, us.Country = "Brandon", "US"
		uk := testdata.NewAuthor()
		uk.FirstName, uk.Country = "Brandon", "UK"

		repo.Add(ctx, us)
		repo.Add(ctx, uk)
		repo.Commit(ctx)

		found, err := repo.Search(ctx, "author", Criteria{"first_name": "Brandon"})
		assert.NoError(t, err)
		assert.Equal(t, []Entity{us, uk}, found, "single criterion matches both")

		found, err = repo.Search(ctx, "author", Criteria{"first_name": "Brandon", "country": "US"})
		assert.NoError(t, err)
		assert.Equal(t, []Entity{us}, found, "criteria are ANDed")

		found, err = repo.Search(ctx, "author", Criteria{"last_name": "Nobody"})
		assert.NoError(t, err)
		assert.Empty(t, found, "no match is empty, not an error")
	})

	t.Run("search unknown attribute", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		repo.Add(ctx, testdata.NewAuthor())
		repo.Commit(ctx)

		_, err := repo.Search(ctx, "author", Criteria{"middle_name": "X"})
		assert.ErrorIs(t, err, ErrInvalidAttribute)
	})

	t.Run("kind isolation", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		author := testdata.NewAuthor()
		author.Country = "US"
		book := testdata.NewBook()
		book.Country = "US"

		repo.Add(ctx, author)
		repo.Add(ctx, book)
		repo.Commit(ctx)

		found, err := repo.Search(ctx, "author", Criteria{"country": "US"})
		assert.NoError(t, err)
		assert.Equal(t, []Entity{author}, found, "identical attribute names must not cross kinds")

		found, err = repo.Search(ctx, "book", Criteria{"country": "US"})
		assert.NoError(t, err)
		assert.Equal(t, []Entity{book}, found)
	})

	t.Run("invalid entity", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		err := repo.Add(ctx, testdata.Note{})
		assert.ErrorIs(t, err, ErrInvalidEntity, "empty string id")

		err = repo.Delete(ctx, testdata.Note{})
		assert.ErrorIs(t, err, ErrInvalidEntity)
	})

	t.Run("string ids", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		note := testdata.NewNote()

		repo.Add(ctx, note)
		repo.Commit(ctx)

		got, err := repo.Get(ctx, note.Kind(), note.ID)
		assert.NoError(t, err)
		assert.Equal(t, note, got)
	})

	t.Run("concurrent staging", func(t *testing.T) {
		t.Parallel()

		const workers = 10

		repo := newRepo()

		var wg sync.WaitGroup

		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				assert.NoError(t, repo.Add(ctx, testdata.NewAuthor()))
			}()
		}

		wg.Wait()
		assert.NoError(t, repo.Commit(ctx))

		all, err := repo.All(ctx, "author")
		assert.NoError(t, err)
		assert.Len(t, all, workers)
	})

	t.Run("empty commit", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()

		assert.NoError(t, repo.Commit(ctx))
		assert.NoError(t, repo.Commit(ctx), "committing nothing is not an error")
	})

	t.Run("scenario", func(t *testing.T) {
		t.Parallel()

		repo := newRepo()
		author := testdata.Author{ID: 0, FirstName: "Brandon", LastName: "Sanderson", Country: "US"}

		assert.NoError(t, repo.Add(ctx, author))
		assert.NoError(t, repo.Commit(ctx))

		found, err := repo.Search(ctx, "author", Criteria{"first_name": "Brandon"})
		assert.NoError(t, err)
		assert.Equal(t, []Entity{author}, found)

		assert.NoError(t, repo.Delete(ctx, found[0]))
		assert.NoError(t, repo.Commit(ctx))

		all, err := repo.All(ctx, "author")
		assert.NoError(t, err)
		assert.Empty(t, all)
	})
}
