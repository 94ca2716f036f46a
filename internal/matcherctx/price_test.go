package matcherctx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeExecPriceIdentity(t *testing.T) {
	for _, base := range []uint64{0, 1, 9_999, 100_000_000, math.MaxUint64} {
		got, err := ComputeExecPrice(base, 0)
		require.NoError(t, err)
		require.Equal(t, base, got)
	}
}

func TestComputeExecPriceSpread(t *testing.T) {
	got, err := ComputeExecPrice(100_000_000, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(100_500_000), got)

	// Division truncates toward zero.
	got, err = ComputeExecPrice(3, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got)

	got, err = ComputeExecPrice(1, 10_000)
	require.NoError(t, err)
	require.Equal(t, uint64(2), got)
}

func TestComputeExecPriceOverflow(t *testing.T) {
	_, err := ComputeExecPrice(math.MaxUint64, math.MaxUint64)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = ComputeExecPrice(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	// Largest base that survives a 50 bps spread still narrows cleanly.
	base := uint64(math.MaxUint64 / 2)
	got, err := ComputeExecPrice(base, 50)
	require.NoError(t, err)
	require.Greater(t, got, base)
}
