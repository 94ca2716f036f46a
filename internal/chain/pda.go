package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

// DeriveContextPDA derives a matcher's context account address from its
// program id and tag.
func DeriveContextPDA(matcherProgramID solana.PublicKey, tag matcherctx.Tag) (solana.PublicKey, uint8, error) {
	seed := tag.Bytes()
	return solana.FindProgramAddress([][]byte{[]byte("matcher-context"), seed[:]}, matcherProgramID)
}

// DeriveLPAuthorityPDA derives the LP authority bound into a context
// account at initialization.
func DeriveLPAuthorityPDA(matcherProgramID solana.PublicKey, lpOwner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("lp-authority"), lpOwner.Bytes()}, matcherProgramID)
}

func MustDeriveContextPDA(matcherProgramID solana.PublicKey, tag matcherctx.Tag) solana.PublicKey {
	pk, _, err := DeriveContextPDA(matcherProgramID, tag)
	if err != nil {
		panic(fmt.Errorf("derive context PDA for %s: %w", tag, err))
	}
	return pk
}
