// Package store persists the mute policy as a TOML document.
package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/1broseidon/focusmute/internal/policy"
)

const (
	stateFileName       = "state.toml"
	legacyExceptionFile = "exceptions.txt"
)

// DefaultPath returns ~/.config/focusmute/state.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "focusmute", stateFileName), nil
}

// FileStore reads and writes the policy document at a fixed path.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ policy.Persister = (*FileStore)(nil)

// ErrCorrupt reports a state file that could not be parsed. The file has
// been moved aside, so saving the returned defaults does not overwrite it.
var ErrCorrupt = errors.New("state file is corrupt")

func New(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the saved document. A missing file yields the defaults,
// seeded from a legacy exceptions.txt next to it when one exists. An
// unparsable file is renamed to <path>.corrupt-<time> and Load returns the
// defaults with an error wrapping ErrCorrupt. Any other error means the file
// is still in place and must not be saved over.
func (s *FileStore) Load() (policy.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := policy.DefaultDocument()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		legacy, err := ReadLegacyExceptions(filepath.Join(filepath.Dir(s.path), legacyExceptionFile))
		if err != nil {
			return doc, err
		}
		if legacy != nil {
			doc.Exceptions = legacy
		}
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%s: failed to read: %w", s.path, err)
	}

	if err := toml.Unmarshal(data, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102-150405"))
		if rerr := os.Rename(s.path, backup); rerr != nil {
			return policy.DefaultDocument(), fmt.Errorf("%s: failed to parse toml: %v (and could not move it aside: %w)", s.path, err, rerr)
		}
		return policy.DefaultDocument(), fmt.Errorf("%w: %s: failed to parse toml: %v (moved to %s)", ErrCorrupt, s.path, err, backup)
	}
	if doc.Volumes == nil {
		doc.Volumes = map[string]int{}
	}
	if doc.ForceMute == nil {
		doc.ForceMute = map[string]bool{}
	}
	return doc, nil
}

// Save writes doc atomically.
func (s *FileStore) Save(doc policy.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// ReadLegacyExceptions reads a newline separated exception list. It returns
// nil without error when the file does not exist.
func ReadLegacyExceptions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read: %w", path, err)
	}

	var out []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		name := policy.NormalizeName(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
