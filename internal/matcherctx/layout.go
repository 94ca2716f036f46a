// Package matcherctx implements the shared binary contract for matcher
// context accounts: a fixed 320-byte buffer that carries a matcher's
// identity header, its bound LP authority, and the execution-price
// return channel read by the dispatching program.
//
// Layout (all integers little-endian):
//
//	[0,8)     exec price (u64, return channel)
//	[8,64)    reserved return data, zero
//	[64,72)   magic tag (u64, matcher discriminant; 0 = uninitialized)
//	[72,76)   header version (u32, constant 1)
//	[76,77)   mode (u8, matcher-defined)
//	[77,80)   padding, zero
//	[80,112)  lp authority pubkey
//	[112,320) matcher-private region
package matcherctx

const (
	// CtxSize is the exact data length of every context account.
	CtxSize = 320

	ReturnDataOffset = 0
	ReturnDataSize   = 64

	MagicOffset   = 64
	VersionOffset = 72
	ModeOffset    = 76
	PaddingOffset = 77

	LPPDAOffset = 80
	LPPDASize   = 32

	PrivateRegionOffset = 112
	PrivateRegionSize   = 208

	// HeaderVersion is written at VersionOffset by WriteHeader.
	HeaderVersion = uint32(1)

	// BpsDenom is the basis-point denominator of the spread formula.
	BpsDenom = uint64(10_000)
)
