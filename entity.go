package stowage

import (
	"fmt"
)

// ID is the identifier an Entity is stored under. String and integer ids are
// supported. A zero integer is a valid id, an empty string is not.
//
// ID is an alias on purpose, so entity packages can declare
// `EntityID() any` without importing stowage.
type ID = any

// Entity is implemented by every object the repositories can store. Identity
// is scoped per kind: two entities refer to the same stored record iff they
// have the same Kind and the same EntityID.
//
// Implement Entity on a plain comparable struct. Equality of two entities is
// Go interface equality, which for comparable structs is structural equality
// across all fields.
type Entity interface {
	// EntityID returns the unique identifier of the entity.
	EntityID() ID

	// Kind names the partition the entity is stored in, e.g. "author".
	// It must be constant per type and callable on the zero value.
	Kind() string

	// Attributes enumerates the declared fields by name, the id included.
	// Search criteria are matched against this mapping, so the names used
	// here are the names callers filter on.
	Attributes() map[string]any
}

// IdentifierOf returns the validated identifier of an entity.
// It fails with ErrInvalidEntity if the entity is nil, the id is missing,
// an empty string, or of an unsupported type.
func IdentifierOf(entity Entity) (ID, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	switch id := entity.EntityID().(type) {
	case nil:
		return nil, fmt.Errorf("%w: %s has no id", ErrInvalidEntity, entity.Kind())
	case string:
		if id == "" {
			return nil, fmt.Errorf("%w: %s has an empty id", ErrInvalidEntity, entity.Kind())
		}

		return id, nil
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return id, nil
	default:
		return nil, fmt.Errorf("%w: %s has an id of unsupported type %T", ErrInvalidEntity, entity.Kind(), id)
	}
}

// key is the (kind, id) pair an entity is stored under.
type key struct {
	kind string
	id   ID
}

func identityOf(entity Entity) (key, error) {
	id, err := IdentifierOf(entity)
	if err != nil {
		return key{}, err
	}

	return key{kind: entity.Kind(), id: id}, nil
}
