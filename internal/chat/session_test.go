package chat

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/ghostbar/internal/models"
)

func TestNewSession(t *testing.T) {
	s := NewSession()

	assert.Empty(t, s.Messages())
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.IsProcessing())
	assert.Equal(t, "", s.StreamingText())
}

func TestStreaming_HelloCommit(t *testing.T) {
	s := NewSession()

	_, err := s.StartStreaming()
	require.NoError(t, err)
	assert.True(t, s.AppendChunk("Hel"))
	assert.True(t, s.AppendChunk("lo"))
	assert.Equal(t, "Hello", s.StreamingText())

	msg, ok := s.FinishStreaming()
	require.True(t, ok)
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, models.RoleAssistant, msg.Role)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, StateIdle, s.State())
}

func TestStreaming_CommitIsTrimmed(t *testing.T) {
	s := NewSession()
	_, _ = s.StartStreaming()
	s.AppendChunk("  \n answer \n")

	msg, ok := s.FinishStreaming()
	require.True(t, ok)
	assert.Equal(t, "answer", msg.Content)
}

func TestStreaming_BlankBufferCommitsNothing(t *testing.T) {
	s := NewSession()
	_, _ = s.StartStreaming()
	s.AppendChunk(" \n\t")

	_, ok := s.FinishStreaming()
	assert.False(t, ok)
	assert.Empty(t, s.Messages())
	assert.Equal(t, StateIdle, s.State())
}

func TestStreaming_ChunkSequences(t *testing.T) {
	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{name: "no chunks", chunks: nil, want: ""},
		{name: "single empty chunk", chunks: []string{""}, want: ""},
		{name: "empty chunks around text", chunks: []string{"", "ok", ""}, want: "ok"},
		{name: "whitespace only", chunks: []string{"  ", "\n", "\t", " \r\n"}, want: ""},
		{name: "surrounding whitespace", chunks: []string{"\n\n  ", "Hello", ", world", "  \n"}, want: "Hello, world"},
		{name: "inner whitespace kept", chunks: []string{"a", "\n\n", "b"}, want: "a\n\nb"},
		{name: "one character per chunk", chunks: strings.Split(long, ""), want: strings.TrimSpace(long)},
		{name: "multibyte split mid rune", chunks: []string{"h\xc3", "\xa9llo"}, want: "héllo"},
		{name: "emoji split across three chunks", chunks: []string{"go \xf0\x9f", "\x9a", "\x80"}, want: "go 🚀"},
		{name: "cjk one rune per chunk", chunks: []string{"你", "好", "，", "世", "界"}, want: "你好，世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			_, err := s.StartStreaming()
			require.NoError(t, err)

			for _, c := range tt.chunks {
				assert.True(t, s.AppendChunk(c))
			}
			assert.Equal(t, strings.Join(tt.chunks, ""), s.StreamingText())

			msg, ok := s.FinishStreaming()
			msgs := s.Messages()
			if tt.want == "" {
				assert.False(t, ok)
				assert.Empty(t, msgs)
			} else {
				require.True(t, ok)
				require.Len(t, msgs, 1)
				assert.Equal(t, tt.want, msg.Content)
				assert.Equal(t, tt.want, msgs[0].Content)
				assert.True(t, utf8.ValidString(msgs[0].Content))
			}
			assert.Equal(t, StateIdle, s.State())
			assert.Equal(t, "", s.StreamingText())
		})
	}
}

func TestStreaming_StartTwiceFails(t *testing.T) {
	s := NewSession()
	_, err := s.StartStreaming()
	require.NoError(t, err)

	_, err = s.StartStreaming()
	assert.ErrorIs(t, err, ErrAlreadyStreaming)
}

func TestStreaming_LateChunkIgnored(t *testing.T) {
	s := NewSession()
	_, _ = s.StartStreaming()
	s.AppendChunk("done")
	s.FinishStreaming()

	assert.False(t, s.AppendChunk("late"))
	assert.Equal(t, "", s.StreamingText())

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "done", msgs[0].Content)
}

func TestStreaming_FinishFromIdleIsNoop(t *testing.T) {
	s := NewSession()
	_, ok := s.FinishStreaming()
	assert.False(t, ok)
	assert.Empty(t, s.Messages())
}

func TestStreaming_StaleStreamID(t *testing.T) {
	s := NewSession()
	first, _ := s.StartStreaming()
	s.ReportError("boom")

	second, err := s.StartStreaming()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.False(t, s.AppendChunkFor(first, "stale"))
	assert.True(t, s.AppendChunkFor(second, "fresh"))
	assert.Equal(t, "fresh", s.StreamingText())

	id, active := s.ActiveStream()
	assert.True(t, active)
	assert.Equal(t, second, id)
}

func TestReportError_DiscardsPartial(t *testing.T) {
	s := NewSession()
	_, _ = s.StartStreaming()
	s.AppendChunk("half an ans")

	msg := s.ReportError("Rate limit exceeded.")
	assert.Equal(t, "Rate limit exceeded.", msg.Content)
	assert.Equal(t, StateIdle, s.State())

	msgs := s.Messages()
	require.Len(t, msgs, 1, "exactly one fallback message, no partial")
	assert.Equal(t, "Rate limit exceeded.", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
}

func TestReportError_EmptyMessageUsesDefault(t *testing.T) {
	s := NewSession()
	msg := s.ReportError("  ")
	assert.Equal(t, DefaultErrorMessage, msg.Content)
}

func TestRequestGate(t *testing.T) {
	s := NewSession()

	require.NoError(t, s.BeginRequest())
	assert.True(t, s.IsProcessing())
	assert.ErrorIs(t, s.BeginRequest(), ErrBusy)

	s.EndRequest()
	assert.False(t, s.IsProcessing())
	assert.NoError(t, s.BeginRequest())
}

func TestRequestGate_Generation(t *testing.T) {
	s := NewSession()

	gen, err := s.BeginRequestIn()
	require.NoError(t, err)
	_, err = s.BeginRequestIn()
	assert.ErrorIs(t, err, ErrBusy)

	_, ok := s.AddMessageIn(gen, models.RoleUser, "old question")
	assert.True(t, ok)

	s.Clear()
	assert.Equal(t, gen+1, s.Generation())

	// a newer request holds the gate; the old one can neither commit nor release it
	require.NoError(t, s.BeginRequest())
	_, ok = s.AddMessageIn(gen, models.RoleAssistant, "stale answer")
	assert.False(t, ok)
	assert.False(t, s.EndRequestIn(gen))
	assert.True(t, s.IsProcessing())
	assert.Empty(t, s.Messages())

	assert.True(t, s.EndRequestIn(s.Generation()))
	assert.False(t, s.IsProcessing())
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewSession()
	s.AddUserMessage("hi")

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hi", s.Messages()[0].Content)
}

func TestLastAssistantMessage(t *testing.T) {
	s := NewSession()
	_, ok := s.LastAssistantMessage()
	assert.False(t, ok)

	s.AddUserMessage("q1")
	s.AddAssistantMessage("a1")
	s.AddUserMessage("q2")

	msg, ok := s.LastAssistantMessage()
	require.True(t, ok)
	assert.Equal(t, "a1", msg.Content)
}

func TestClear(t *testing.T) {
	s := NewSession()
	s.SetInput("draft")
	s.AddUserMessage("hi")
	_ = s.BeginRequest()
	id, _ := s.StartStreaming()
	s.AppendChunk("x")

	s.Clear()

	assert.Empty(t, s.Messages())
	assert.Equal(t, "", s.Input())
	assert.False(t, s.IsProcessing())
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.AppendChunkFor(id, "stale"))

	next, err := s.StartStreaming()
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "streaming", StateStreaming.String())
}
