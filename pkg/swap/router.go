package swap

import (
	"context"
	"fmt"
	"math/big"

	"wallet-swap/pkg/route"
	"wallet-swap/pkg/types"
)

// Router dispatches swap operations to the backend of the request's chain.
// Cross-chain requests fail before any I/O.
type Router struct {
	backends map[route.SwapType]Backend
}

// NewRouter creates a router over the given backends. A nil backend leaves its
// chain unsupported.
func NewRouter(solanaBackend, ethereumBackend Backend) *Router {
	backends := make(map[route.SwapType]Backend, 2)
	if solanaBackend != nil {
		backends[route.SwapTypeSolana] = solanaBackend
	}
	if ethereumBackend != nil {
		backends[route.SwapTypeEthereum] = ethereumBackend
	}
	return &Router{backends: backends}
}

// backend returns the backend for a request
func (r *Router) backend(from types.Asset, to *types.Asset) (Backend, error) {
	swapType, err := route.Classify(from, to)
	if err != nil {
		return nil, err
	}
	if swapType == route.SwapTypeBridge {
		return nil, route.ErrBridgeNotImplemented
	}

	backend, ok := r.backends[swapType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", route.ErrUnsupportedBlockchain, from.Blockchain)
	}
	return backend, nil
}

// FetchQuote returns the best quote for a swap, or nil if none could be fetched
func (r *Router) FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) (*types.Quote, error) {
	backend, err := r.backend(from, to)
	if err != nil {
		return nil, err
	}
	return backend.FetchQuote(ctx, from, to, fromAmount), nil
}

// FetchTransaction returns the serialized swap transaction for a quote
func (r *Router) FetchTransaction(ctx context.Context, from types.Asset, to *types.Asset, quote *types.Quote) (string, error) {
	if quote == nil {
		return "", ErrQuoteNotFound
	}
	backend, err := r.backend(from, to)
	if err != nil {
		return "", err
	}
	return backend.FetchTransaction(ctx, from, quote)
}

// EstimateFees returns the network fees of a swap
func (r *Router) EstimateFees(ctx context.Context, from types.Asset, to *types.Asset, quote *types.Quote, transaction string) (types.TransactionFees, error) {
	backend, err := r.backend(from, to)
	if err != nil {
		return types.TransactionFees{}, err
	}
	return backend.EstimateFees(ctx, to, quote, transaction), nil
}

// SendTransaction signs and submits a swap transaction
func (r *Router) SendTransaction(ctx context.Context, req SendRequest) (string, error) {
	if req.To == nil || req.FromToken == nil || req.ToToken == nil || req.Quote == nil {
		return "", ErrTokensNotLoaded
	}
	backend, err := r.backend(req.From, req.To)
	if err != nil {
		return "", err
	}
	return backend.SendTransaction(ctx, req)
}

// AvailableForSwap returns how much of a balance can be swapped
func (r *Router) AvailableForSwap(from types.Asset, to *types.Asset, available *big.Int) (*big.Int, error) {
	backend, err := r.backend(from, to)
	if err != nil {
		return nil, err
	}
	return backend.AvailableForSwapOffset(from, available), nil
}

// ValidInputTokens filters wallet balances to the tokens that can be swapped from
func (r *Router) ValidInputTokens(ctx context.Context, from types.Asset, to *types.Asset, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	backend, err := r.backend(from, to)
	if err != nil {
		return nil, err
	}
	return backend.ValidInputTokens(ctx, balances)
}

// OutputTokens lists the tokens the source asset can be swapped to
func (r *Router) OutputTokens(ctx context.Context, from types.Asset, to *types.Asset, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	backend, err := r.backend(from, to)
	if err != nil {
		return nil, err
	}
	return backend.OutputTokens(ctx, from.Mint, balances)
}
