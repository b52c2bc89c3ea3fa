// Package prefs persists user preferences between runs: the selected
// interviewer voice and audio parameters, plus the capture sensitivity.
// Preferences are stored as a small YAML file, read at startup and written
// on change.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preferences holds everything persisted between runs. Changing any of these
// alters audio parameters only, never functional behaviour.
type Preferences struct {
	// VoiceID is the provider-specific identifier of the selected voice.
	VoiceID string `yaml:"voice_id"`

	// VoiceName is the human-readable name shown to the user.
	VoiceName string `yaml:"voice_name"`

	// Rate adjusts speaking rate (0.5–2.0, 0 = provider default).
	Rate float64 `yaml:"rate"`

	// Pitch adjusts pitch (-10 to +10, 0 = default).
	Pitch float64 `yaml:"pitch"`

	// Sensitivity is the capture noise-filter preset (low/medium/high).
	Sensitivity string `yaml:"sensitivity"`
}

// Store reads and writes a Preferences file. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store backed by the file at path. The file does not
// need to exist yet.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs: path must not be empty")
	}
	return &Store{path: path}, nil
}

// Load reads the preferences file. A missing file yields zero Preferences
// with no error.
func (s *Store) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("prefs: read: %w", err)
	}

	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("prefs: parse: %w", err)
	}
	return p, nil
}

// Save writes the preferences atomically: a temp file in the same directory
// is renamed over the target so a crash never leaves a half-written file.
func (s *Store) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prefs: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("prefs: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("prefs: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("prefs: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("prefs: rename: %w", err)
	}
	return nil
}
