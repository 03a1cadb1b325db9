package route

import (
	"errors"
	"fmt"

	"wallet-swap/pkg/types"
)

// SwapType is the backend a swap request is routed to
type SwapType int

const (
	SwapTypeSolana SwapType = iota
	SwapTypeEthereum
	SwapTypeBridge
)

// String returns the swap type name
func (t SwapType) String() string {
	switch t {
	case SwapTypeSolana:
		return "solana"
	case SwapTypeEthereum:
		return "ethereum"
	case SwapTypeBridge:
		return "bridge"
	default:
		return fmt.Sprintf("SwapType(%d)", int(t))
	}
}

var (
	// ErrUnsupportedBlockchain is returned for chains no backend handles
	ErrUnsupportedBlockchain = errors.New("blockchain not available for swap")
	// ErrBridgeNotImplemented is returned for every cross-chain request
	ErrBridgeNotImplemented = errors.New("swap not implemented for cross-chain bridging")
)

// Classify picks the swap type for a source and optional destination asset.
// Differing chains always classify as a bridge, regardless of which chains they are.
func Classify(from types.Asset, to *types.Asset) (SwapType, error) {
	if to != nil && from.Blockchain != to.Blockchain {
		return SwapTypeBridge, nil
	}

	switch from.Blockchain {
	case types.BlockchainSolana:
		return SwapTypeSolana, nil
	case types.BlockchainEthereum:
		return SwapTypeEthereum, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedBlockchain, from.Blockchain)
	}
}
