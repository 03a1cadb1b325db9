package route

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func asset(chain types.Blockchain) types.Asset {
	return types.Asset{WalletPublicKey: "wallet", Mint: "mint", Blockchain: chain}
}

func TestClassify(t *testing.T) {
	sol := asset(types.BlockchainSolana)
	eth := asset(types.BlockchainEthereum)
	near := asset("near")

	tests := []struct {
		name     string
		from     types.Asset
		to       *types.Asset
		expected SwapType
		err      error
	}{
		{name: "solana to solana", from: sol, to: &sol, expected: SwapTypeSolana},
		{name: "solana without destination", from: sol, to: nil, expected: SwapTypeSolana},
		{name: "ethereum to ethereum", from: eth, to: &eth, expected: SwapTypeEthereum},
		{name: "solana to ethereum", from: sol, to: &eth, expected: SwapTypeBridge},
		{name: "ethereum to solana", from: eth, to: &sol, expected: SwapTypeBridge},
		{name: "unsupported to other chain is still a bridge", from: near, to: &sol, expected: SwapTypeBridge},
		{name: "unsupported same chain", from: near, to: &near, err: ErrUnsupportedBlockchain},
		{name: "unsupported without destination", from: near, to: nil, err: ErrUnsupportedBlockchain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.from, tt.to)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestSwapTypeString(t *testing.T) {
	require.Equal(t, "solana", SwapTypeSolana.String())
	require.Equal(t, "ethereum", SwapTypeEthereum.String())
	require.Equal(t, "bridge", SwapTypeBridge.String())
	require.Equal(t, "SwapType(9)", SwapType(9).String())
}
