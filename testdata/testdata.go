// Package testdata holds the entities shared by the stowage test suites.
// The types implement stowage.Entity structurally, so the package stays free
// of a stowage import and can be used by the conformance suite itself.
package testdata

import (
	"sync/atomic"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Author is the canonical test entity with an integer id.
type Author struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `json:"country"`
}

func (a Author) EntityID() any { return a.ID }

func (a Author) Kind() string { return "author" }

func (a Author) Attributes() map[string]any {
	return map[string]any{
		"id":         a.ID,
		"first_name": a.FirstName,
		"last_name":  a.LastName,
		"country":    a.Country,
	}
}

// Book shares attribute names with Author on purpose, so kind isolation can
// be asserted: a search for authors must never surface books.
type Book struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Country string `json:"country"`
}

func (b Book) EntityID() any { return b.ID }

func (b Book) Kind() string { return "book" }

func (b Book) Attributes() map[string]any {
	return map[string]any{
		"id":      b.ID,
		"title":   b.Title,
		"country": b.Country,
	}
}

// Note is the test entity with a string id.
type Note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (n Note) EntityID() any { return n.ID }

func (n Note) Kind() string { return "note" }

func (n Note) Attributes() map[string]any {
	return map[string]any{
		"id":   n.ID,
		"body": n.Body,
	}
}

// lastAuthorID keeps generated ids unique, so tests can rely on counts.
// Starts at 1; id 0 is reserved for hand-written fixtures.
var lastAuthorID atomic.Int64

func NewAuthor() Author {
	return Author{
		ID:        int(lastAuthorID.Add(1)),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Country:   gofakeit.CountryAbr(),
	}
}

func NewBook() Book {
	return Book{
		ID:      int(lastAuthorID.Add(1)),
		Title:   gofakeit.BookTitle(),
		Country: gofakeit.CountryAbr(),
	}
}

func NewNote() Note {
	return Note{
		ID:   uuid.New().String(),
		Body: gofakeit.Sentence(5),
	}
}
