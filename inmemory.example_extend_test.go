package stowage_test

import (
	"context"
	"fmt"

	"github.com/go-stowage/stowage"
	"github.com/go-stowage/stowage/testdata"
)

func Example_extendRepositoryWithNewMethods() {
	ctx := context.Background()

	repo := NewAuthorRepository()
	repo.Add(ctx, testdata.Author{ID: 1, FirstName: "Robin", LastName: "Hobb", Country: "US"})
	repo.Commit(ctx)

	authors, _ := repo.FindByCountry(ctx, "US")
	fmt.Println(authors)

	// Output: [{1 Robin Hobb US}]
}

type AuthorRepository struct {
	*stowage.MemoryRepository
}

func NewAuthorRepository() *AuthorRepository {
	return &AuthorRepository{MemoryRepository: stowage.NewMemoryRepository()}
}

func (repo *AuthorRepository) FindByCountry(ctx context.Context, country string) ([]testdata.Author, error) {
	return stowage.Search[testdata.Author](ctx, repo, stowage.Criteria{"country": country})
}
