package ports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBaseDeterministic(t *testing.T) {
	for _, base := range []int{1024, 26650, 26660, 30000} {
		require.Equal(t, FromBase(base), FromBase(base))
	}
}

func TestOffsetsDistinct(t *testing.T) {
	base := 26650
	ps := FromBase(base)
	all := []int{ps.API, ps.Pprof, ps.GRPC, ps.GRPCTx, ps.GRPCWeb, ps.EVMRPC, ps.P2P, ps.RPC, ps.EVMRPCWS}
	seen := make(map[int]bool)
	for _, p := range all {
		require.False(t, seen[p], "duplicate port %d", p)
		require.GreaterOrEqual(t, p, base)
		require.Less(t, p, base+PortStride, "port %d escapes the node's block", p)
		seen[p] = true
	}
}

func TestWellKnownOffsets(t *testing.T) {
	require.Equal(t, 26657, RPC(26650))
	require.Equal(t, 26656, P2P(26650))
	require.Equal(t, 26667, RPC(26660))
}
