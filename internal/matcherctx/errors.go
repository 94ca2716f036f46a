package matcherctx

import "errors"

var (
	ErrMissingSignature   = errors.New("lp authority did not sign")
	ErrUninitialized      = errors.New("context account uninitialized or bound to another matcher")
	ErrAuthorityMismatch  = errors.New("stored lp authority does not match signer")
	ErrNotWritable        = errors.New("context account is not writable")
	ErrTooSmall           = errors.New("context account data too small")
	ErrAlreadyInitialized = errors.New("context account already initialized")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
