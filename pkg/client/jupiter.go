package client

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"wallet-swap/pkg/types"
)

const (
	// DefaultJupiterURL is the aggregator endpoint used when none is configured
	DefaultJupiterURL = "https://jupiter.xnfts.dev/v6/"
	// DefaultSlippageBps is 1%
	DefaultSlippageBps = 100
)

// JupiterClient talks to the Solana swap aggregator
type JupiterClient struct {
	rest restClient
}

// NewJupiterClient creates a new aggregator client. baseURL must end with a slash.
func NewJupiterClient(baseURL string, httpClient *http.Client) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	return &JupiterClient{rest: newRESTClient(baseURL, httpClient)}
}

// QuoteParams are the query parameters of a quote request
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      *big.Int
	SlippageBps int
}

// swapRequest is the body of the swap endpoint
type swapRequest struct {
	QuoteResponse    *types.JupiterQuote `json:"quoteResponse"`
	WrapAndUnwrapSol bool                `json:"wrapAndUnwrapSol"`
	UserPublicKey    string              `json:"userPublicKey"`
}

// swapResponse carries the serialized transaction to sign
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// GetQuote fetches the best route for the given input
func (c *JupiterClient) GetQuote(ctx context.Context, params QuoteParams) (*types.JupiterQuote, error) {
	if params.Amount == nil {
		return nil, fmt.Errorf("amount is required")
	}
	slippage := params.SlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}

	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", params.Amount.String())
	query.Set("slippageBps", strconv.Itoa(slippage))

	var quote types.JupiterQuote
	if err := c.rest.do(ctx, http.MethodGet, "quote?"+query.Encode(), nil, &quote); err != nil {
		return nil, fmt.Errorf("failed to get quote from Jupiter: %w", err)
	}

	return &quote, nil
}

// GetSwapTransaction asks the aggregator to build the swap transaction for a quote.
// The result is a base64 encoded, unsigned transaction.
func (c *JupiterClient) GetSwapTransaction(ctx context.Context, quote *types.JupiterQuote, userPublicKey string) (string, error) {
	if quote == nil {
		return "", fmt.Errorf("quote is required")
	}

	req := swapRequest{
		QuoteResponse:    quote,
		WrapAndUnwrapSol: true,
		UserPublicKey:    userPublicKey,
	}

	var resp swapResponse
	if err := c.rest.do(ctx, http.MethodPost, "swap", req, &resp); err != nil {
		return "", fmt.Errorf("failed to get swap transaction from Jupiter: %w", err)
	}

	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("empty swap transaction")
	}

	return resp.SwapTransaction, nil
}
