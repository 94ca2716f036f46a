package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

func TestParseMatcherSet(t *testing.T) {
	out, err := parseMatcherSet("")
	require.NoError(t, err)
	require.Empty(t, out)

	out, err = parseMatcherSet(`{
		"volatility": {"tag": "VOLMATCH", "program_id": "GpMobZUKPtEE1eiZQAADo2ecD54JXhNHPNts5kPGwLtb", "mode": 1, "spread_bps": 50}
	}`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "volatility", out[0].Label)
	require.Equal(t, matcherctx.TagVolatility, out[0].Tag)
	require.Equal(t, uint8(1), out[0].Mode)
	require.Equal(t, uint64(50), out[0].SpreadBps)
}

func TestParseMatcherSetRejectsBadEntries(t *testing.T) {
	_, err := parseMatcherSet(`{"x": {"tag": "TOOLONGTAG", "program_id": "GpMobZUKPtEE1eiZQAADo2ecD54JXhNHPNts5kPGwLtb"}}`)
	require.Error(t, err)

	_, err = parseMatcherSet(`{"x": {"tag": "VOLMATCH", "program_id": "not-a-key"}}`)
	require.Error(t, err)

	_, err = parseMatcherSet(`{"x": {"tag": "VOLMATCH", "program_id": "GpMobZUKPtEE1eiZQAADo2ecD54JXhNHPNts5kPGwLtb", "spread_bps": 10000}}`)
	require.Error(t, err)
}

func TestNormalizeKeySegment(t *testing.T) {
	require.Equal(t, "SOLANA_RPC_URL", normalizeKeySegment("solana rpc url"))
	require.Equal(t, "DB_DSN", normalizeKeySegment("db-dsn"))
	require.Equal(t, "", normalizeKeySegment("   "))
}
