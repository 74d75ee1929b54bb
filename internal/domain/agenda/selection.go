package agenda

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// selectionNull is the persisted sentinel for "personal context".
const selectionNull = "null"

// SelectionStore persists each viewer's last-selected band so it can be
// restored on the next session. A missing key or the literal "null" both
// mean personal context.
type SelectionStore interface {
	Get(viewerID string) (*string, error)
	Set(viewerID string, bandID *string) error
}

// FileSelectionStore is a small JSON-file key-value store.
type FileSelectionStore struct {
	mu   sync.Mutex
	path string
}

func NewFileSelectionStore(path string) *FileSelectionStore {
	return &FileSelectionStore{path: path}
}

func (s *FileSelectionStore) Get(viewerID string) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}

	value, ok := values[viewerID]
	if !ok || value == selectionNull || value == "" {
		return nil, nil
	}
	return &value, nil
}

func (s *FileSelectionStore) Set(viewerID string, bandID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}

	if bandID == nil {
		values[viewerID] = selectionNull
	} else {
		values[viewerID] = *bandID
	}

	contents, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, contents, 0o644)
}

func (s *FileSelectionStore) read() (map[string]string, error) {
	values := map[string]string{}
	contents, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(contents, &values); err != nil {
		// A corrupt selection file only loses the remembered context.
		return map[string]string{}, nil
	}
	return values, nil
}

// MemorySelectionStore backs tests and setups with no persistence path.
type MemorySelectionStore struct {
	mu     sync.Mutex
	values map[string]*string
}

func NewMemorySelectionStore() *MemorySelectionStore {
	return &MemorySelectionStore{values: make(map[string]*string)}
}

func (s *MemorySelectionStore) Get(viewerID string) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[viewerID], nil
}

func (s *MemorySelectionStore) Set(viewerID string, bandID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bandID == nil {
		s.values[viewerID] = nil
		return nil
	}
	value := *bandID
	s.values[viewerID] = &value
	return nil
}
