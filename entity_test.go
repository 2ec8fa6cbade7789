package stowage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-stowage/stowage"
	"github.com/go-stowage/stowage/testdata"
)

func TestIdentifierOf(t *testing.T) {
	t.Parallel()

	t.Run("string id", func(t *testing.T) {
		t.Parallel()

		id, err := stowage.IdentifierOf(testdata.Note{ID: "0000", Body: "some note"})
		assert.NoError(t, err)
		assert.Equal(t, "0000", id)
	})

	t.Run("zero int id is valid", func(t *testing.T) {
		t.Parallel()

		id, err := stowage.IdentifierOf(testdata.Author{ID: 0})
		assert.NoError(t, err)
		assert.Equal(t, 0, id)
	})

	t.Run("empty string id", func(t *testing.T) {
		t.Parallel()

		_, err := stowage.IdentifierOf(testdata.Note{})
		assert.ErrorIs(t, err, stowage.ErrInvalidEntity)
	})

	t.Run("nil entity", func(t *testing.T) {
		t.Parallel()

		_, err := stowage.IdentifierOf(nil)
		assert.ErrorIs(t, err, stowage.ErrInvalidEntity)
	})

	t.Run("nil id", func(t *testing.T) {
		t.Parallel()

		_, err := stowage.IdentifierOf(nilIDEntity{})
		assert.ErrorIs(t, err, stowage.ErrInvalidEntity)
	})

	t.Run("unsupported id type", func(t *testing.T) {
		t.Parallel()

		_, err := stowage.IdentifierOf(floatIDEntity{id: 1.5})
		assert.ErrorIs(t, err, stowage.ErrInvalidEntity)
	})
}

type nilIDEntity struct{}

func (e nilIDEntity) EntityID() stowage.ID       { return nil }
func (e nilIDEntity) Kind() string               { return "nilID" }
func (e nilIDEntity) Attributes() map[string]any { return map[string]any{} }

type floatIDEntity struct{ id float64 }

func (e floatIDEntity) EntityID() stowage.ID       { return e.id }
func (e floatIDEntity) Kind() string               { return "floatID" }
func (e floatIDEntity) Attributes() map[string]any { return map[string]any{"id": e.id} }
