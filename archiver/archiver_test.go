package archiver

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/latticearc/latticearc/coordinate"
)

func open(t *testing.T, fs afero.Fs, root string) *Archiver {
	t.Helper()
	a, err := Open(fs, root, WithLocker(NewNoopLocker()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

func TestImportNewConversationStartsAtCursor(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := open(t, fs, "/root")
	require.True(t, a.Cursor().Equal(coordinate.Zero()))

	conv := Conversation{
		Title: "First Chat",
		ID:    "conv-1",
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "bye"},
			{Role: "assistant", Content: "goodbye"},
		},
	}
	require.NoError(t, a.Import(conv))

	entry, ok := a.Index().Get("First Chat")
	require.True(t, ok)
	require.Equal(t, "conv-1", entry.ID)
	require.Equal(t, coordinate.Zero().Format(), entry.Start)
	require.NotEqual(t, entry.Start, entry.End)
}

func TestImportAppendContinuesTrajectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := open(t, fs, "/root")

	conv := Conversation{
		Title: "Growing Chat",
		ID:    "conv-2",
		Messages: []Message{
			{Role: "user", Content: "msg1"},
			{Role: "assistant", Content: "reply1"},
			{Role: "user", Content: "msg2"},
			{Role: "assistant", Content: "reply2"},
		},
	}
	require.NoError(t, a.Import(conv))
	first, _ := a.Index().Get("Growing Chat")

	conv.Messages = append(conv.Messages,
		Message{Role: "user", Content: "msg3"},
		Message{Role: "assistant", Content: "reply3"},
	)
	require.NoError(t, a.Import(conv))
	second, ok := a.Index().Get("Growing Chat")
	require.True(t, ok)

	require.Equal(t, first.Start, second.Start, "append must not move start")
	require.NotEqual(t, first.End, second.End, "append must advance end")
}

func TestImportFullSkipsIndexedTitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := open(t, fs, "/root")

	conv := Conversation{Title: "Once", ID: "x", Messages: []Message{{Role: "user", Content: "hi"}}}
	skipped, err := a.ImportFull(conv)
	require.NoError(t, err)
	require.False(t, skipped)

	skipped, err = a.ImportFull(conv)
	require.NoError(t, err)
	require.True(t, skipped)
}

func TestImportNewRejectsAlreadyIndexedTitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := open(t, fs, "/root")

	conv := Conversation{Title: "Dup", ID: "x", Messages: []Message{{Role: "user", Content: "hi"}}}
	require.NoError(t, a.ImportNew(conv))
	err := a.ImportNew(conv)
	require.ErrorIs(t, err, ErrAlreadyIndexed)
}

func TestImportAppendingRequiresIndexedMatchingID(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := open(t, fs, "/root")

	conv := Conversation{Title: "Needs Base", ID: "x", Messages: []Message{{Role: "user", Content: "hi"}}}
	err := a.ImportAppending(conv)
	require.ErrorIs(t, err, ErrNotIndexed)

	require.NoError(t, a.ImportNew(conv))

	wrongID := conv
	wrongID.ID = "y"
	err = a.ImportAppending(wrongID)
	require.ErrorIs(t, err, ErrIDMismatch)

	conv.Messages = append(conv.Messages, Message{Role: "assistant", Content: "hello"})
	require.NoError(t, a.ImportAppending(conv))
}

func TestSecondOpenWithoutNoopLockerRefusesWhileFirstHolds(t *testing.T) {
	fs := afero.NewMemMapFs()
	shared := &inMemoryExclusiveLocker{}

	a, err := Open(fs, "/root", WithLocker(shared))
	require.NoError(t, err)

	_, err = Open(fs, "/root", WithLocker(shared))
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, a.Close())
}

// inMemoryExclusiveLocker simulates a held flock without touching the
// real filesystem, so it can be shared across two Open calls in a
// test.
type inMemoryExclusiveLocker struct{ held bool }

func (l *inMemoryExclusiveLocker) TryLock() (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *inMemoryExclusiveLocker) Unlock() error {
	l.held = false
	return nil
}

func TestCursorPersistsAcrossReopens(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := open(t, fs, "/root")

	conv := Conversation{
		Title: "Persisted",
		ID:    "p1",
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	require.NoError(t, a.Import(conv))
	cursorAfter := a.Cursor()
	require.NoError(t, a.Close())

	b, err := Open(fs, "/root", WithLocker(NewNoopLocker()))
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	require.True(t, b.Cursor().Equal(cursorAfter))
	entry, ok := b.Index().Get("Persisted")
	require.True(t, ok)
	require.Equal(t, "p1", entry.ID)
}

func TestTrailingUnmatchedUserMessagePairsWithEmptyAssistant(t *testing.T) {
	pairs := pairMessages([]Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	})
	require.Len(t, pairs, 2)
	require.Equal(t, "c", pairs[1].user)
	require.Equal(t, "", pairs[1].assistant)
}

func TestMatchingAttachmentsFiltersBySubstring(t *testing.T) {
	got := matchingAttachments([]string{"photo.png", "unused.pdf"}, "here is photo.png", "")
	require.Equal(t, []string{"photo.png"}, got)
}
