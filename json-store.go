package stowage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*JSONStore)(nil)

// JSONStore persists the committed store as a human-readable JSON file on
// disc, one file per repository. It is not schema aware: records decode
// through the repository's Registry, and changing an entity struct can make
// previously written files unreadable.
// CAUTION: This is only intended for local development and prototyping.
type JSONStore struct {
	dir string

	mu sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	err := os.MkdirAll(path, os.ModePerm)
	if err != nil {
		panic("could not create path: " + path + ": " + err.Error())
	}

	return &JSONStore{dir: path, mu: sync.Mutex{}}
}

func (s *JSONStore) Store(fileName string, data any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Create(filepath.Join(s.dir, fileName))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer file.Close()

	b, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	_, err = io.Copy(file, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

func (s *JSONStore) Load(fileName string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, fileName))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	return nil
}
