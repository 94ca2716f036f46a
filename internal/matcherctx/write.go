package matcherctx

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// WriteHeader populates the header fields of an uninitialized context
// account. Callers must have passed VerifyInitPreconditions first; no
// checks are re-run here. Field order follows the layout: return-data
// region zeroed, then tag, version, mode, padding, lp authority.
func WriteHeader(buf []byte, tag Tag, mode uint8, lpKey solana.PublicKey) {
	for i := ReturnDataOffset; i < ReturnDataOffset+ReturnDataSize; i++ {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint64(buf[MagicOffset:MagicOffset+8], uint64(tag))
	binary.LittleEndian.PutUint32(buf[VersionOffset:VersionOffset+4], HeaderVersion)
	buf[ModeOffset] = mode
	for i := PaddingOffset; i < LPPDAOffset; i++ {
		buf[i] = 0
	}
	copy(buf[LPPDAOffset:LPPDAOffset+LPPDASize], lpKey.Bytes())
}

// WriteExecPrice overwrites the return-price channel. May be called
// repeatedly; touches no other field.
func WriteExecPrice(buf []byte, price uint64) {
	binary.LittleEndian.PutUint64(buf[ReturnDataOffset:ReturnDataOffset+8], price)
}
