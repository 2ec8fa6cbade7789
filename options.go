package stowage

import (
	"log/slog"
)

// Option sets optional properties on a repository constructor.
// Options not supported by a backend are ignored by it.
type Option func(*repoConfig)

type repoConfig struct {
	store    Store
	filename string
	registry *Registry
	logger   *slog.Logger
}

// WithStore sets a Store used to persist the repository between runs.
// ONLY applies to the in-memory implementation.
//
// There are no consistency guarantees between the store and the repository:
// if the store fails during Commit, the committed store is already changed
// in memory.
func WithStore(store Store) Option {
	return func(config *repoConfig) {
		config.store = store
	}
}

// WithStoreFilename overwrites the file name a Store uses to persist this
// repository. ONLY applies to the in-memory implementation.
func WithStoreFilename(name string) Option {
	return func(config *repoConfig) {
		config.filename = name
	}
}

// WithRegistry sets the Registry used to decode persisted records back into
// their concrete entity types. Required by the SQLite and Badger backends
// and by an in-memory repository loading from a Store.
func WithRegistry(registry *Registry) Option {
	return func(config *repoConfig) {
		config.registry = registry
	}
}

// WithLogger sets the logger backends forward their internal logging to.
// Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(config *repoConfig) {
		config.logger = logger
	}
}
