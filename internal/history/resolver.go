package history

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolver resolves user-friendly references to transcript IDs
type Resolver struct {
	store *Store
}

// NewResolver creates a new reference resolver
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve converts a reference to a transcript ID
//
// Supported references:
//   - "@last" - most recent transcript
//   - "@first" - oldest transcript
//   - "1", "2", "3" - by index (1-based, most recent first)
//   - an ID or a unique ID prefix of at least 4 characters
//   - "substring" - match on title (error if multiple matches)
func (r *Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}

	transcripts, err := r.store.List()
	if err != nil {
		return "", fmt.Errorf("failed to list transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return "", fmt.Errorf("no transcripts found")
	}

	switch strings.ToLower(ref) {
	case "@last":
		return transcripts[0].ID, nil
	case "@first":
		return transcripts[len(transcripts)-1].ID, nil
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(transcripts) {
			return "", fmt.Errorf("index %d out of range (1-%d)", index, len(transcripts))
		}
		return transcripts[index-1].ID, nil
	}

	if id, ok := matchID(transcripts, ref); ok {
		return id, nil
	}

	refLower := strings.ToLower(ref)
	var matches []*Transcript
	for _, t := range transcripts {
		if strings.Contains(strings.ToLower(t.Title), refLower) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no transcript matching '%s'", ErrNotFound, ref)
	case 1:
		return matches[0].ID, nil
	default:
		var titles []string
		for _, m := range matches {
			titles = append(titles, fmt.Sprintf("'%s'", m.Title))
		}
		return "", fmt.Errorf("multiple transcripts match '%s': %s. Use the ID or be more specific",
			ref, strings.Join(titles, ", "))
	}
}

// ResolveTranscript resolves a reference and loads the transcript
func (r *Resolver) ResolveTranscript(ref string) (*Transcript, error) {
	id, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.store.Get(id)
}

// matchID finds an exact ID or a unique prefix of one
func matchID(transcripts []*Transcript, ref string) (string, bool) {
	var prefixed []string
	for _, t := range transcripts {
		if t.ID == ref {
			return t.ID, true
		}
		if len(ref) >= 4 && strings.HasPrefix(t.ID, ref) {
			prefixed = append(prefixed, t.ID)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], true
	}
	return "", false
}

// ListAliases returns information about supported references
func ListAliases() string {
	return `Supported references:
  @last          Most recent transcript
  @first         Oldest transcript
  1, 2, 3        By index (1-based, from most recent)
  3f2a...        ID or unique ID prefix
  "text"         Search by title substring`
}
