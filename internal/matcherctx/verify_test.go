package matcherctx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func initializedAccount(t *testing.T, tag Tag, seed byte) Account {
	t.Helper()
	buf := make([]byte, CtxSize)
	WriteHeader(buf, tag, 0, testKey(t, seed))
	return Account{Key: testKey(t, seed+100), Data: buf, IsWritable: true}
}

func TestVerifyMagicSizeGuard(t *testing.T) {
	for _, size := range []int{0, 8, MagicOffset, CtxSize - 1} {
		buf := make([]byte, size)
		require.False(t, VerifyMagic(buf, TagPrivacy), "len=%d", size)
		require.False(t, VerifyMagic(buf, TagUninitialized), "len=%d", size)
	}

	buf := make([]byte, CtxSize)
	WriteHeader(buf, TagPrivacy, 0, testKey(t, 1))
	require.True(t, VerifyMagic(buf, TagPrivacy))
	require.False(t, VerifyMagic(buf, TagVolatility))
}

func TestVerifyInitPreconditionsOrdering(t *testing.T) {
	// Not writable fires first, even on an otherwise hopeless account.
	err := VerifyInitPreconditions(Account{Data: nil}, TagPrivacy, "privacy init")
	require.ErrorIs(t, err, ErrNotWritable)
	require.Contains(t, err.Error(), "privacy init")

	// Size before the magic check.
	err = VerifyInitPreconditions(Account{Data: make([]byte, 64), IsWritable: true}, TagPrivacy, "privacy init")
	require.ErrorIs(t, err, ErrTooSmall)

	err = VerifyInitPreconditions(Account{Data: make([]byte, CtxSize), IsWritable: true}, TagPrivacy, "privacy init")
	require.NoError(t, err)
}

func TestVerifyInitPreconditionsRejectsReinit(t *testing.T) {
	acc := initializedAccount(t, TagPrivacy, 1)

	// Re-init is blocked no matter which tag the caller presents,
	// including the one already stored.
	for _, tag := range []Tag{TagPrivacy, TagVolatility, TagUninitialized} {
		err := VerifyInitPreconditions(acc, tag, "reinit probe")
		require.ErrorIs(t, err, ErrAlreadyInitialized, "tag=%s", tag)
	}
}

func TestVerifyLPPDASignerGuard(t *testing.T) {
	ctxAcc := initializedAccount(t, TagJPY, 3)
	lpKey := ReadLPPDA(ctxAcc.Data)

	err := VerifyLPPDA(Account{Key: lpKey, IsSigner: false}, ctxAcc, TagJPY, "jpy exec")
	require.ErrorIs(t, err, ErrMissingSignature)

	err = VerifyLPPDA(Account{Key: lpKey, IsSigner: true}, ctxAcc, TagJPY, "jpy exec")
	require.NoError(t, err)
}

func TestVerifyLPPDAUninitializedRejection(t *testing.T) {
	blank := Account{Data: make([]byte, CtxSize)}
	signer := Account{Key: testKey(t, 5), IsSigner: true}

	err := VerifyLPPDA(signer, blank, TagEvent, "event exec")
	require.ErrorIs(t, err, ErrUninitialized)
}

func TestVerifyLPPDACrossMatcherRejection(t *testing.T) {
	ctxAcc := initializedAccount(t, TagPrivacy, 6)
	// Signer key equals the stored lp authority, so only the magic
	// check can reject.
	signer := Account{Key: ReadLPPDA(ctxAcc.Data), IsSigner: true}

	err := VerifyLPPDA(signer, ctxAcc, TagVolatility, "vol exec")
	require.ErrorIs(t, err, ErrUninitialized)
	require.NotErrorIs(t, err, ErrAuthorityMismatch)
}

func TestVerifyLPPDAAuthorityMismatch(t *testing.T) {
	ctxAcc := initializedAccount(t, TagVolatility, 7)
	signer := Account{Key: testKey(t, 99), IsSigner: true}

	err := VerifyLPPDA(signer, ctxAcc, TagVolatility, "vol exec")
	require.ErrorIs(t, err, ErrAuthorityMismatch)
}
