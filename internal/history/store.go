// Package history stores dismissed overlay sessions as local transcripts.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/ghostbar/internal/models"
)

// ErrNotFound is returned when a transcript does not exist
var ErrNotFound = errors.New("transcript not found")

// ErrEmptyTranscript is returned by Save when there is nothing worth keeping
var ErrEmptyTranscript = errors.New("transcript has no messages")

// titleLimit bounds the title derived from the first question
const titleLimit = 50

// Transcript is one saved overlay session
type Transcript struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Model     string               `json:"model"`
	CreatedAt time.Time            `json:"created_at"`
	Messages  []models.ChatMessage `json:"messages"`
}

// Store manages transcript persistence
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a store under baseDir/history
func NewStore(baseDir string) (*Store, error) {
	historyDir := filepath.Join(baseDir, "history")
	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &Store{
		baseDir: historyDir,
	}, nil
}

// Dir returns the directory holding the transcript files
func (s *Store) Dir() string {
	return s.baseDir
}

// Save writes the messages of a session as a new transcript
func (s *Store) Save(model string, messages []models.ChatMessage) (*Transcript, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Transcript{
		ID:        uuid.NewString(),
		Title:     titleFor(messages),
		Model:     model,
		CreatedAt: time.Now(),
		Messages:  append([]models.ChatMessage(nil), messages...),
	}

	if err := s.saveTranscript(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get retrieves a transcript by ID
func (s *Store) Get(id string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadTranscript(id)
}

// List returns all transcripts, most recent first
func (s *Store) List() ([]*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var transcripts []*Transcript
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		t, err := s.loadTranscript(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // corrupted
		}
		transcripts = append(transcripts, t)
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].CreatedAt.After(transcripts[j].CreatedAt)
	})

	return transcripts, nil
}

// Delete removes a transcript
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.transcriptPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	return nil
}

// ClearAll deletes every transcript and returns how many were removed
func (s *Store) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

func (s *Store) transcriptPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *Store) loadTranscript(id string) (*Transcript, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	data, err := os.ReadFile(s.transcriptPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}

	return &t, nil
}

func (s *Store) saveTranscript(t *Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if err := os.WriteFile(s.transcriptPath(t.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	return nil
}

// titleFor uses the first question, shortened to one line
func titleFor(messages []models.ChatMessage) string {
	for _, m := range messages {
		if !m.IsUser() {
			continue
		}
		title := strings.Join(strings.Fields(m.Content), " ")
		if title == "" {
			continue
		}
		if r := []rune(title); len(r) > titleLimit {
			title = string(r[:titleLimit]) + "..."
		}
		return title
	}
	return "Untitled " + time.Now().Format("2006-01-02 15:04")
}
