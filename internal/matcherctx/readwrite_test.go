package matcherctx

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, seed byte) solana.PublicKey {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	return solana.PublicKeyFromBytes(raw)
}

func TestWriteHeaderRoundTrip(t *testing.T) {
	tags := []Tag{TagPrivacy, TagVolatility, TagJPY, TagEvent}
	modes := []uint8{0, 1, 7, 255}

	for i, tag := range tags {
		for _, mode := range modes {
			buf := make([]byte, CtxSize)
			key := testKey(t, byte(i+1))

			WriteHeader(buf, tag, mode, key)

			require.Equal(t, tag, ReadMagic(buf))
			require.Equal(t, key, ReadLPPDA(buf))
			require.Equal(t, HeaderVersion, ReadVersion(buf))
			require.Equal(t, mode, ReadMode(buf))
			require.True(t, VerifyMagic(buf, tag), "freshly written header must pass its own magic check")
		}
	}
}

func TestWriteHeaderZeroesReturnRegionAndPadding(t *testing.T) {
	buf := make([]byte, CtxSize)
	for i := range buf {
		buf[i] = 0xff
	}
	// The private region is owned by the matcher and must survive.
	WriteHeader(buf, TagVolatility, 3, testKey(t, 9))

	require.Equal(t, make([]byte, ReturnDataSize), buf[ReturnDataOffset:ReturnDataOffset+ReturnDataSize])
	require.Equal(t, []byte{0, 0, 0}, buf[PaddingOffset:LPPDAOffset])
	require.Equal(t, bytes.Repeat([]byte{0xff}, PrivateRegionSize), buf[PrivateRegionOffset:])
}

func TestWriteExecPriceOnlyTouchesReturnChannel(t *testing.T) {
	buf := make([]byte, CtxSize)
	key := testKey(t, 4)
	WriteHeader(buf, TagJPY, 1, key)

	WriteExecPrice(buf, 100_500_000)
	require.Equal(t, uint64(100_500_000), ReadExecPrice(buf))

	// Repeated writes fully overwrite the prior value.
	WriteExecPrice(buf, 42)
	require.Equal(t, uint64(42), ReadExecPrice(buf))

	require.Equal(t, TagJPY, ReadMagic(buf))
	require.Equal(t, key, ReadLPPDA(buf))
	require.Equal(t, HeaderVersion, ReadVersion(buf))
}

func TestReadMagicPanicsOnShortBuffer(t *testing.T) {
	require.Panics(t, func() {
		ReadMagic(make([]byte, MagicOffset+4))
	})
}

func TestDecodeHeader(t *testing.T) {
	buf := make([]byte, CtxSize)
	key := testKey(t, 7)
	WriteHeader(buf, TagEvent, 5, key)
	WriteExecPrice(buf, 123)

	header, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(123), header.ExecPrice)
	require.Equal(t, TagEvent, header.Tag())
	require.Equal(t, HeaderVersion, header.Version)
	require.Equal(t, uint8(5), header.Mode)
	require.Equal(t, key, header.LPPDA)

	_, err = DecodeHeader(make([]byte, CtxSize-1))
	require.ErrorIs(t, err, ErrTooSmall)
}

func TestTagString(t *testing.T) {
	tag, err := TagFromString("PRIVMATC")
	require.NoError(t, err)
	require.Equal(t, TagPrivacy, tag)
	require.Equal(t, "PRIVMATC", tag.String())

	_, err = TagFromString("SHORT")
	require.Error(t, err)

	require.Equal(t, "0x0", TagUninitialized.String())
}
