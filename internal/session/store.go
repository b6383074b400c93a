package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fakeyudi/mirror/internal/statefile"
)

// ErrNoState is returned by Load when no registry file exists on disk.
var ErrNoState = errors.New("no saved session state")

// StateFile is the registry document's file name inside the state directory.
const StateFile = "state.json"

// Store persists the registry document.
type Store interface {
	Save(doc *Document) error
	Load() (*Document, error) // returns ErrNoState if none exists
}

// diskStore is the concrete Store that writes state.json into a directory.
type diskStore struct {
	path string // full path to state.json
}

// NewStore returns a Store backed by dir/state.json, creating dir if needed.
func NewStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, StateFile)}, nil
}

// DefaultDir returns the mirror-specific XDG data directory:
// $XDG_DATA_HOME/mirror or ~/.local/share/mirror.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "mirror"), nil
}

// Save writes the whole document atomically via a temp file + os.Rename.
func (d *diskStore) Save(doc *Document) error {
	if err := statefile.WriteJSON(d.path, doc); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Load reads and unmarshals the registry file.
// Returns ErrNoState if the file does not exist.
func (d *diskStore) Load() (*Document, error) {
	var doc Document
	if err := statefile.ReadJSON(d.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	return &doc, nil
}
