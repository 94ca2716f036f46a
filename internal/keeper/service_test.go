package keeper

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/quoteline/matcher/backend/internal/matcherctx"
	"github.com/stretchr/testify/require"
)

func TestUpdateExecPriceInstructionEncoding(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	executor := solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	ctxKey := solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	lpKey := solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")

	ix := newUpdateExecPriceInstruction(program, executor, ctxKey, lpKey, 100_500_000)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	require.Equal(t, updateExecPriceDisc[:], data[:8])
	require.Equal(t, uint64(100_500_000), binary.LittleEndian.Uint64(data[8:16]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	require.True(t, accounts[0].IsSigner)
	require.False(t, accounts[0].IsWritable)
	require.True(t, accounts[1].IsWritable)
	require.False(t, accounts[2].IsSigner)
}

func TestInitContextInstructionEncoding(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	payer := solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	ctxKey := solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	lpKey := solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")

	ix := newInitContextInstruction(program, payer, ctxKey, lpKey, matcherctx.TagVolatility, 2)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 17)
	require.Equal(t, initContextDisc[:], data[:8])
	require.Equal(t, uint64(matcherctx.TagVolatility), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, byte(2), data[16])

	accounts := ix.Accounts()
	require.Len(t, accounts, 4)
	require.True(t, accounts[0].IsSigner)
	require.True(t, accounts[0].IsWritable)
	require.True(t, accounts[1].IsWritable)
	require.Equal(t, solana.SystemProgramID, accounts[3].PublicKey)
}

func TestInstructionDiscriminatorsDiffer(t *testing.T) {
	require.NotEqual(t, initContextDisc, updateExecPriceDisc)
	require.Equal(t, anchorInstructionDiscriminator("update_exec_price"), updateExecPriceDisc)
}
