package mathutil

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMulModMatchesBigInt(t *testing.T) {
	const m = uint64(46_656_000_000)
	cases := []struct{ a, b uint64 }{
		{0, 0},
		{1, 1},
		{m - 1, m - 1},
		{12345678901, 98765432},
		{9_999_999_999, 9_999_999_999},
	}
	for _, c := range cases {
		got := MulMod(c.a, c.b, m)
		want := new(big.Int).Mod(
			new(big.Int).Mul(big.NewInt(int64(c.a)), big.NewInt(int64(c.b))),
			big.NewInt(int64(m)),
		).Uint64()
		require.Equal(t, want, got, "MulMod(%d,%d,%d)", c.a, c.b, m)
	}
}

func TestSubModWraps(t *testing.T) {
	require.Equal(t, uint64(5), SubMod(10, 5, 100))
	require.Equal(t, uint64(95), SubMod(5, 10, 100))
	require.Equal(t, uint64(0), SubMod(0, 0, 100))
}

func TestAddModWraps(t *testing.T) {
	require.Equal(t, uint64(0), AddMod(99, 1, 100))
	require.Equal(t, uint64(50), AddMod(25, 25, 100))
}

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 0, CeilDiv(5, 0))
	require.Equal(t, 3, CeilDiv(6, 2))
	require.Equal(t, 3, CeilDiv(5, 2))
	require.Equal(t, 1, CeilDiv(1, 2))
}

func TestSafeMul(t *testing.T) {
	lo, overflow := SafeMul(2, 3)
	require.False(t, overflow)
	require.Equal(t, uint64(6), lo)

	_, overflow = SafeMul(1<<63, 2)
	require.True(t, overflow)
}
