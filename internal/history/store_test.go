package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/ghostbar/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func exchange(question, answer string) []models.ChatMessage {
	return []models.ChatMessage{
		models.NewChatMessage(models.RoleUser, question),
		models.NewChatMessage(models.RoleAssistant, answer),
	}
}

// saveAll saves transcripts in order, oldest first
func saveAll(t *testing.T, store *Store, questions ...string) []*Transcript {
	t.Helper()
	var out []*Transcript
	for _, q := range questions {
		tr, err := store.Save("gpt-4o", exchange(q, "answer to "+q))
		require.NoError(t, err)
		out = append(out, tr)
		time.Sleep(2 * time.Millisecond)
	}
	return out
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save("gpt-4o", exchange("What is on my screen?", "A terminal."))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "What is on my screen?", saved.Title)

	_, err = os.Stat(filepath.Join(store.Dir(), saved.ID+".json"))
	require.NoError(t, err)

	got, err := store.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, models.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "A terminal.", got.Messages[1].Content)
}

func TestStore_SaveEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save("gpt-4o", nil)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestStore_TitleIsShortened(t *testing.T) {
	store := newTestStore(t)
	long := strings.Repeat("word ", 30)

	saved, err := store.Save("gpt-4o", exchange(long+"\n\nsecond line", "ok"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Title, "..."))
	assert.LessOrEqual(t, len([]rune(saved.Title)), titleLimit+3)
	assert.NotContains(t, saved.Title, "\n")
}

func TestStore_ListNewestFirstSkipsCorrupted(t *testing.T) {
	store := newTestStore(t)
	saved := saveAll(t, store, "first", "second", "third")

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "broken.json"), []byte("{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o600))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, saved[2].ID, list[0].ID)
	assert.Equal(t, saved[0].ID, list[2].ID)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	saved := saveAll(t, store, "one")

	require.NoError(t, store.Delete(saved[0].ID))
	assert.ErrorIs(t, store.Delete(saved[0].ID), ErrNotFound)

	_, err := store.Get(saved[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetRejectsPaths(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("../config")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ClearAll(t *testing.T) {
	store := newTestStore(t)
	saveAll(t, store, "a", "b")

	removed, err := store.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestResolver(t *testing.T) {
	store := newTestStore(t)
	saved := saveAll(t, store, "python traceback", "rust borrow checker", "python venv")
	r := NewResolver(store)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"last", "@last", saved[2].ID, false},
		{"first", "@FIRST", saved[0].ID, false},
		{"index", "2", saved[1].ID, false},
		{"index out of range", "9", "", true},
		{"full id", saved[0].ID, saved[0].ID, false},
		{"id prefix", saved[1].ID[:8], saved[1].ID, false},
		{"unique title", "borrow", saved[1].ID, false},
		{"ambiguous title", "python", "", true},
		{"no match", "golang", "", true},
		{"empty", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_NoTranscripts(t *testing.T) {
	_, err := NewResolver(newTestStore(t)).Resolve("@last")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	tr := &Transcript{
		ID:        "id",
		Title:     "What is this?",
		Model:     "gpt-4o",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Messages:  exchange("What is this?", "A chart."),
	}

	md, err := Export(tr, ExportFormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, md, "# What is this?")
	assert.Contains(t, md, "**Model:** gpt-4o")
	assert.Contains(t, md, "## User")
	assert.Contains(t, md, "## Assistant")
	assert.Contains(t, md, "A chart.")

	js, err := Export(tr, ExportFormatJSON)
	require.NoError(t, err)
	assert.Contains(t, js, `"title": "What is this?"`)
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatMarkdown, f)

	f, err = ParseExportFormat("json")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatJSON, f)

	_, err = ParseExportFormat("pdf")
	assert.Error(t, err)
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		at   time.Time
		want string
	}{
		{now, "just now"},
		{now.Add(-1 * time.Minute), "1 min ago"},
		{now.Add(-5 * time.Minute), "5 mins ago"},
		{now.Add(-3 * time.Hour), "3 hours ago"},
		{now.Add(-30 * time.Hour), "yesterday"},
		{now.Add(-4 * 24 * time.Hour), "4 days ago"},
		{now.Add(-8 * 24 * time.Hour), "1 week ago"},
		{now.Add(-65 * 24 * time.Hour), "2 months ago"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRelativeTime(tt.at))
	}
}
