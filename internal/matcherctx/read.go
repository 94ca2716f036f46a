package matcherctx

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ReadMagic reads the tag at MagicOffset. Callers must pre-check the
// buffer length; undersized input panics on the bounds check rather
// than reading garbage.
func ReadMagic(buf []byte) Tag {
	return Tag(binary.LittleEndian.Uint64(buf[MagicOffset : MagicOffset+8]))
}

// ReadLPPDA reads the bound LP authority key.
func ReadLPPDA(buf []byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(buf[LPPDAOffset : LPPDAOffset+LPPDASize])
}

// ReadExecPrice reads the return-price channel, bytes 0-7.
func ReadExecPrice(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf[ReturnDataOffset : ReturnDataOffset+8])
}

func ReadVersion(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[VersionOffset : VersionOffset+4])
}

func ReadMode(buf []byte) uint8 {
	return buf[ModeOffset]
}

// Header is the decoded context-account header, for inspection and
// indexing surfaces. The offset-based readers above remain the
// canonical contract functions.
type Header struct {
	ExecPrice uint64
	Reserved  [56]byte
	Magic     uint64
	Version   uint32
	Mode      uint8
	Padding   [3]byte
	LPPDA     solana.PublicKey
}

func (h Header) Tag() Tag { return Tag(h.Magic) }

func DecodeHeader(buf []byte) (Header, error) {
	var out Header
	if len(buf) < CtxSize {
		return out, fmt.Errorf("%w: have %d bytes, need %d", ErrTooSmall, len(buf), CtxSize)
	}
	if err := bin.NewBinDecoder(buf[:PrivateRegionOffset]).Decode(&out); err != nil {
		return Header{}, fmt.Errorf("decode context header: %w", err)
	}
	return out, nil
}
