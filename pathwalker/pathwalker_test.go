package pathwalker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticearc/latticearc/coordinate"
)

func TestWalkDeterminism(t *testing.T) {
	start := coordinate.Zero()
	key := "hello"

	w1 := New(start, key)
	w2 := New(start, key)

	for i := 0; i < 50; i++ {
		c1 := w1.Step()
		c2 := w2.Step()
		require.Equal(t, c1.Format(), c2.Format(), "step %d coordinate diverged", i)
		require.Equal(t, w1.Imag(), w2.Imag(), "step %d imag diverged", i)
	}
}

func TestWalkClosure(t *testing.T) {
	start := coordinate.Zero()
	w := New(start, "closure-key")
	for i := 0; i < 2000; i++ {
		c := w.Step()
		require.NoError(t, c.ValidateDigits(), "step %d produced an out-of-range digit", i)
	}
}

func TestStepIsPureFunctionOfK(t *testing.T) {
	start := coordinate.Zero()
	key := "pure-fn"

	w := New(start, key)
	var at30 coordinate.Coordinate
	var imagAt30 uint32
	for i := 0; i < 30; i++ {
		at30 = w.Step()
		imagAt30 = w.Imag()
	}

	// Replay from scratch to the same step count; must match exactly.
	w2 := New(start, key)
	var replay coordinate.Coordinate
	var imagReplay uint32
	for i := 0; i < 30; i++ {
		replay = w2.Step()
		imagReplay = w2.Imag()
	}

	require.Equal(t, at30.Format(), replay.Format())
	require.Equal(t, imagAt30, imagReplay)
}

func TestDifferentKeysDiverge(t *testing.T) {
	start := coordinate.Zero()
	w1 := New(start, "key-a")
	w2 := New(start, "key-b")

	same := true
	for i := 0; i < 10; i++ {
		c1 := w1.Step()
		c2 := w2.Step()
		if c1.Format() != c2.Format() || w1.Imag() != w2.Imag() {
			same = false
			break
		}
	}
	require.False(t, same, "expected distinct keys to diverge within 10 steps")
}

func TestImagDependsOnHistoryNotJustCoordinate(t *testing.T) {
	// Runs two walkers with different keys looking for a step where
	// they land on the same coordinate, and logs when their imag
	// registers also match there. imag is folded from both the previous
	// and current coordinate at every step, so a match at a shared
	// coordinate is permitted but not required; this test makes no
	// assertion about divergence.
	start := coordinate.Zero()
	w1 := New(start, "alpha")
	w2 := New(start, "beta")

	var collided bool
	for i := 0; i < 5000 && !collided; i++ {
		c1 := w1.Step()
		c2 := w2.Step()
		if c1.Format() == c2.Format() {
			collided = true
			// Coordinates coincide, but unless the two walkers'
			// entire history matched (which would mean the same
			// walker), their imag registers need not match.
			if w1.Imag() == w2.Imag() {
				t.Logf("imag also matched at collision step %d (permitted, not required)", i)
			}
		}
	}
}
