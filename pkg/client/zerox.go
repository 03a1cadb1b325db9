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

// DefaultZeroXURL is the EVM DEX aggregator endpoint used when none is configured
const DefaultZeroXURL = "https://api.0x.org/swap/v1/"

// ZeroXClient talks to the EVM DEX aggregator
type ZeroXClient struct {
	rest restClient
}

// NewZeroXClient creates a new 0x client. apiKey may be empty.
func NewZeroXClient(baseURL, apiKey string, httpClient *http.Client) *ZeroXClient {
	if baseURL == "" {
		baseURL = DefaultZeroXURL
	}
	rest := newRESTClient(baseURL, httpClient)
	if apiKey != "" {
		rest.headers["0x-api-key"] = apiKey
	}
	return &ZeroXClient{rest: rest}
}

// ZeroXQuoteParams are the query parameters of a 0x quote request
type ZeroXQuoteParams struct {
	SellToken    string
	BuyToken     string
	SellAmount   *big.Int
	TakerAddress string
	// SlippagePercentage is a fraction, 0.01 for 1%
	SlippagePercentage float64
}

// GetQuote fetches a firm quote including the calldata to execute it
func (c *ZeroXClient) GetQuote(ctx context.Context, params ZeroXQuoteParams) (*types.ZeroXQuote, error) {
	if params.SellAmount == nil {
		return nil, fmt.Errorf("sell amount is required")
	}

	query := url.Values{}
	query.Set("sellToken", params.SellToken)
	query.Set("buyToken", params.BuyToken)
	query.Set("sellAmount", params.SellAmount.String())
	if params.TakerAddress != "" {
		query.Set("takerAddress", params.TakerAddress)
	}
	if params.SlippagePercentage > 0 {
		query.Set("slippagePercentage", strconv.FormatFloat(params.SlippagePercentage, 'f', -1, 64))
	}

	var quote types.ZeroXQuote
	if err := c.rest.do(ctx, http.MethodGet, "quote?"+query.Encode(), nil, &quote); err != nil {
		return nil, fmt.Errorf("failed to get quote from 0x: %w", err)
	}

	return &quote, nil
}
