// Package memory keeps short facts the user states about themselves
// ("my name is...", "I like...") and replays them as system context.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/diogo/techtouch/internal/intent"
)

// MaxLines is how many statements are kept
const MaxLines = 10

const fileName = "memory.json"

type memoryFile struct {
	Lines []string `json:"lines"`
}

// Store persists the user memory to a JSON file
type Store struct {
	path  string
	mu    sync.RWMutex
	lines []string
}

// NewStore opens (or creates) the memory file inside baseDir
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	s := &Store{path: filepath.Join(baseDir, fileName)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Remember stores text if it is a memory statement. It reports whether
// the text was kept.
func (s *Store) Remember(text string) (bool, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || !intent.IsMemoryStatement(text) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, text)
	if len(s.lines) > MaxLines {
		s.lines = s.lines[len(s.lines)-MaxLines:]
	}
	return true, s.save()
}

// Lines returns the remembered statements, oldest first
func (s *Store) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Clear forgets everything
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	return s.save()
}

// SystemContext renders the memory as a system-instruction suffix, or ""
// when nothing is remembered
func (s *Store) SystemContext() string {
	lines := s.Lines()
	if len(lines) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Things the user told you about themselves (use them to personalise answers):\n")
	for _, l := range lines {
		sb.WriteString("- ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read memory file: %w", err)
	}

	var f memoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse memory file: %w", err)
	}
	s.lines = f.Lines
	if len(s.lines) > MaxLines {
		s.lines = s.lines[len(s.lines)-MaxLines:]
	}
	return nil
}

// save writes the file; caller holds s.mu
func (s *Store) save() error {
	data, err := json.MarshalIndent(memoryFile{Lines: s.lines}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	return nil
}
