package stowage

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errUnknownKind = errors.New("kind is not registered")

// Registry maps kind names to decoders, so persistent backends and snapshot
// stores can turn serialised records back into their concrete entity types.
// The pure in-memory repository does not need one.
type Registry struct {
	decoders map[string]func(raw []byte) (Entity, error)
}

func NewRegistry() *Registry {
	return &Registry{decoders: map[string]func(raw []byte) (Entity, error){}}
}

// Register makes the entity type E known to the registry under its kind.
// Registering the same kind again overwrites the previous decoder.
func Register[E Entity](registry *Registry) {
	registry.decoders[KindOf[E]()] = func(raw []byte) (Entity, error) {
		var entity E

		if err := json.Unmarshal(raw, &entity); err != nil {
			return nil, fmt.Errorf("could not decode %s: %w", KindOf[E](), err)
		}

		return entity, nil
	}
}

func (r *Registry) decode(kind string, raw []byte) (Entity, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no registry configured", errUnknownKind)
	}

	decode, ok := r.decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownKind, kind)
	}

	return decode(raw)
}

func encode(entity Entity) ([]byte, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", entity.Kind(), err)
	}

	return raw, nil
}
