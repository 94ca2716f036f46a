package matcherctx

import "fmt"

// VerifyMagic reports whether buf is a full-size context account bound
// to want. A buffer shorter than CtxSize is never a match.
func VerifyMagic(buf []byte, want Tag) bool {
	if len(buf) < CtxSize {
		return false
	}
	return ReadMagic(buf) == want
}

// VerifyInitPreconditions must pass before any initialization write.
// Checks run in order and stop at the first failure: writable, then
// size, then the stored magic must be zero. Re-initialization is
// rejected regardless of the presented tag; want exists for symmetry
// with VerifyLPPDA and does not relax the zero-magic check.
func VerifyInitPreconditions(acc Account, want Tag, label string) error {
	_ = want
	if !acc.IsWritable {
		return fmt.Errorf("%s: %w", label, ErrNotWritable)
	}
	if len(acc.Data) < CtxSize {
		return fmt.Errorf("%s: %w (have %d bytes, need %d)", label, ErrTooSmall, len(acc.Data), CtxSize)
	}
	if ReadMagic(acc.Data) != TagUninitialized {
		return fmt.Errorf("%s: %w", label, ErrAlreadyInitialized)
	}
	return nil
}

// VerifyLPPDA must pass before any execution that reads or mutates the
// return-price channel. Checks run in order and stop at the first
// failure: signer, then magic, then the stored authority key. A magic
// mismatch and a never-initialized account both surface as
// ErrUninitialized; callers cannot tell "wrong matcher" from "not yet
// set up".
func VerifyLPPDA(signer Account, ctxAcc Account, want Tag, label string) error {
	if !signer.IsSigner {
		return fmt.Errorf("%s: %w", label, ErrMissingSignature)
	}
	if !VerifyMagic(ctxAcc.Data, want) {
		return fmt.Errorf("%s: %w", label, ErrUninitialized)
	}
	if !ReadLPPDA(ctxAcc.Data).Equals(signer.Key) {
		return fmt.Errorf("%s: %w", label, ErrAuthorityMismatch)
	}
	return nil
}
