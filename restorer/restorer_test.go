package restorer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/latticearc/latticearc/archiver"
	"github.com/latticearc/latticearc/blockstore"
	"github.com/latticearc/latticearc/coordinate"
	"github.com/latticearc/latticearc/internal/index"
	"github.com/latticearc/latticearc/pathwalker"
)

// asPairs reduces a conversation's messages to the same (user,
// assistant) shape restored blocks carry, for a structural diff
// against what RestoreAll actually returns — the store/restore
// inverse property spec.md §8 calls out.
func asPairs(msgs []archiver.Message) []struct{ User, Assistant string } {
	var pairs []struct{ User, Assistant string }
	for i := 0; i < len(msgs); i += 2 {
		p := struct{ User, Assistant string }{User: msgs[i].Content}
		if i+1 < len(msgs) {
			p.Assistant = msgs[i+1].Content
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func TestRestoreAllMatchesOriginalMessagesStructurally(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := archiver.Open(fs, "/root", archiver.WithLocker(archiver.NewNoopLocker()))
	require.NoError(t, err)
	defer a.Close()

	conv := archiver.Conversation{
		Title: "Structural Diff",
		ID:    "sd-1",
		Messages: []archiver.Message{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
			{Role: "assistant", Content: "four"},
			{Role: "user", Content: "five"},
		},
	}
	require.NoError(t, a.Import(conv))

	store := blockstore.New(fs, "/root")
	r := New(store, a.Index())
	blocks, err := r.RestoreAll("Structural Diff")
	require.NoError(t, err)

	var got []struct{ User, Assistant string }
	for _, b := range blocks {
		got = append(got, struct{ User, Assistant string }{User: b.User, Assistant: b.Assistant})
	}
	want := asPairs(conv.Messages)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restored message pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestRestoreAllReconstructsOriginalSequence(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := archiver.Open(fs, "/root", archiver.WithLocker(archiver.NewNoopLocker()))
	require.NoError(t, err)
	defer a.Close()

	conv := archiver.Conversation{
		Title: "Roundtrip",
		ID:    "rt-1",
		Messages: []archiver.Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
			{Role: "user", Content: "how are you"},
			{Role: "assistant", Content: "great, thanks"},
		},
	}
	require.NoError(t, a.Import(conv))

	store := blockstore.New(fs, "/root")
	r := New(store, a.Index())

	blocks, err := r.RestoreAll("Roundtrip")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, "hello", blocks[0].User)
	require.Equal(t, "hi there", blocks[0].Assistant)
	require.Equal(t, "how are you", blocks[1].User)
	require.Equal(t, "great, thanks", blocks[1].Assistant)
}

// TestRestoreAfterAppendIncludesAppendedBlocks guards against a
// regression where the append branch of Import resumed writing at the
// conversation's original start coordinate instead of the walker's
// post-retrace position: the appended block would land on top of the
// first block (wrong universe, same coordinate) and the coordinate the
// walker actually retraced to would be left empty, so a restore
// replaying from start would stop before ever seeing the appended
// message — breaking the store/restore inverse property for every
// appended conversation.
func TestRestoreAfterAppendIncludesAppendedBlocks(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := archiver.Open(fs, "/root", archiver.WithLocker(archiver.NewNoopLocker()))
	require.NoError(t, err)
	defer a.Close()

	conv := archiver.Conversation{
		Title: "Appended Roundtrip",
		ID:    "ar-1",
		Messages: []archiver.Message{
			{Role: "user", Content: "msg1"},
			{Role: "assistant", Content: "reply1"},
			{Role: "user", Content: "msg2"},
			{Role: "assistant", Content: "reply2"},
		},
	}
	require.NoError(t, a.Import(conv))

	conv.Messages = append(conv.Messages,
		archiver.Message{Role: "user", Content: "msg3"},
		archiver.Message{Role: "assistant", Content: "reply3"},
	)
	require.NoError(t, a.Import(conv))

	store := blockstore.New(fs, "/root")
	r := New(store, a.Index())

	blocks, err := r.RestoreAll("Appended Roundtrip")
	require.NoError(t, err)
	require.Len(t, blocks, 3, "restore must include the appended block")
	require.Equal(t, "msg1", blocks[0].User)
	require.Equal(t, "msg2", blocks[1].User)
	require.Equal(t, "msg3", blocks[2].User)
	require.Equal(t, "reply3", blocks[2].Assistant)
}

func TestRestoreUnknownTitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := blockstore.New(fs, "/root")
	r := New(store, index.New())

	_, err := r.RestoreAll("nope")
	require.ErrorIs(t, err, ErrUnknownTitle)
}

func TestRestoreStreamYieldsOneAtATime(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := archiver.Open(fs, "/root", archiver.WithLocker(archiver.NewNoopLocker()))
	require.NoError(t, err)
	defer a.Close()

	conv := archiver.Conversation{
		Title: "Stream Me",
		ID:    "s-1",
		Messages: []archiver.Message{
			{Role: "user", Content: "a"},
			{Role: "assistant", Content: "b"},
			{Role: "user", Content: "c"},
			{Role: "assistant", Content: "d"},
		},
	}
	require.NoError(t, a.Import(conv))

	store := blockstore.New(fs, "/root")
	r := New(store, a.Index())

	next, err := r.RestoreStream("Stream Me")
	require.NoError(t, err)

	blk, ok, err := next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", blk.User)

	blk, ok, err = next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", blk.User)

	_, ok, err = next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRestoreDetectsWalkDesyncOnUniverseMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := blockstore.New(fs, "/root")

	start := coordinate.Zero()
	key := "desync-key"
	expected := pathwalker.New(start, key).Imag()

	// Write a block at the expected start coordinate whose universe
	// does not match what the walker will expect there, while leaving
	// the bucket non-empty — simulating a trail whose universe was
	// reassigned by a collision after the index was recorded.
	_, err := store.Write(start, blockstore.Block{User: "u", Universe: expected + 1}, "")
	require.NoError(t, err)

	idx := index.New()
	idx.Set("Desynced", index.Entry{ID: key, Start: start.Format(), End: start.Format()})

	r := New(store, idx)
	_, err = r.RestoreAll("Desynced")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWalkDesync)
}
