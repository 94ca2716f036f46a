package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	require.Equal(t,
		"INSERT INTO t (a, b) VALUES ($1, $2)",
		rebindPostgresPlaceholders("INSERT INTO t (a, b) VALUES (?, ?)"),
	)
	require.Equal(t,
		"SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3 OFFSET $4",
		rebindPostgresPlaceholders("SELECT * FROM t WHERE a = ? AND b = ? LIMIT ? OFFSET ?"),
	)
	require.Equal(t, "SELECT 1", rebindPostgresPlaceholders("SELECT 1"))
}

func TestNormalizeWindow(t *testing.T) {
	limit, offset := normalizeWindow(0, 0)
	require.Equal(t, 100, limit)
	require.Equal(t, 0, offset)

	limit, offset = normalizeWindow(5000, -3)
	require.Equal(t, 1000, limit)
	require.Equal(t, 0, offset)

	limit, offset = normalizeWindow(25, 50)
	require.Equal(t, 25, limit)
	require.Equal(t, 50, offset)
}

func TestNormalizeMarketSymbol(t *testing.T) {
	require.Equal(t, "BTCUSD", NormalizeMarketSymbol(" btc-usd "))
	require.Equal(t, "SOLUSD", NormalizeMarketSymbol("sol/usd"))
	require.Equal(t, "", NormalizeMarketSymbol("---"))
	require.Equal(t, "BTCUSD", normalizeMarketWithDefault(""))
}
