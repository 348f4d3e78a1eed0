package reviewlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/docsplice/pkg/types"
)

// DefaultCursorFile is the cursor file name, kept in the repository root
const DefaultCursorFile = "last_doc_date.json"

// CursorStore persists the date of the last completed documentation run
type CursorStore struct {
	path string
	mu   sync.Mutex
}

// NewCursorStore creates a store backed by the file at path
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// CursorPath returns the default cursor location for a repository
func CursorPath(repoRoot string) string {
	return filepath.Join(repoRoot, DefaultCursorFile)
}

// Path returns the backing file
func (s *CursorStore) Path() string {
	return s.path
}

// Load reads the cursor. ok is false when no valid cursor has been saved.
func (s *CursorStore) Load() (cursor types.Cursor, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Cursor{}, false, nil
		}
		return types.Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}

	if err := json.Unmarshal(data, &cursor); err != nil {
		return types.Cursor{}, false, nil
	}

	if _, err := cursor.Date(); err != nil {
		return types.Cursor{}, false, nil
	}

	return cursor, true, nil
}

// Save records the calendar date of t
func (s *CursorStore) Save(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.path, types.NewCursor(t)); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// State is the persisted state threaded through a run
type State struct {
	Log    *Log
	Cursor *CursorStore
}

// NewState opens the review log at logPath and the cursor of repoRoot
func NewState(logPath, repoRoot string) *State {
	return &State{
		Log:    NewLog(logPath),
		Cursor: NewCursorStore(CursorPath(repoRoot)),
	}
}
