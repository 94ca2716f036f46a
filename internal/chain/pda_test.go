package chain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

func TestDeriveContextPDADeterministic(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("GpMobZUKPtEE1eiZQAADo2ecD54JXhNHPNts5kPGwLtb")

	first, bump1, err := DeriveContextPDA(program, matcherctx.TagPrivacy)
	require.NoError(t, err)
	second, bump2, err := DeriveContextPDA(program, matcherctx.TagPrivacy)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, bump1, bump2)

	other, _, err := DeriveContextPDA(program, matcherctx.TagVolatility)
	require.NoError(t, err)
	require.NotEqual(t, first, other)

	require.Equal(t, first, MustDeriveContextPDA(program, matcherctx.TagPrivacy))
}

func TestDeriveLPAuthorityPDAVariesByOwner(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("GpMobZUKPtEE1eiZQAADo2ecD54JXhNHPNts5kPGwLtb")
	ownerA := solana.MustPublicKeyFromBase58("BsA8fuyw8XqBMiUfpLbdiBwbKg8MZMHB1jdZzjs7c46q")
	ownerB := solana.MustPublicKeyFromBase58("F8gkLV5nMaCG16PQAwkKKsTdWC2yuPektUXAFHQF4Cds")

	a, _, err := DeriveLPAuthorityPDA(program, ownerA)
	require.NoError(t, err)
	b, _, err := DeriveLPAuthorityPDA(program, ownerB)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
