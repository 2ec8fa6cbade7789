package stowage

import "errors"

var (
	ErrStore = errors.New("could not store repository data")
	ErrLoad  = errors.New("could not load repository data")
)

// Store reads and writes the committed store of a repository as a whole, so
// the in-memory implementation can survive a restart during local
// development and demoing. It is not a storage backend: consistency with the
// in-memory state is best effort only.
type Store interface {
	Store(fileName string, data any) error
	Load(fileName string, data any) error
}

var _ Store = (*noopStore)(nil)

type noopStore struct{}

func (n noopStore) Store(_ string, _ any) error {
	return nil
}

func (n noopStore) Load(_ string, _ any) error {
	return nil
}
