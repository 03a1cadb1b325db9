package client

import (
	"context"
	"fmt"
	"net/http"

	graphql "github.com/hasura/go-graphql-client"
)

// OutputToken is a token the aggregator can swap into
type OutputToken struct {
	Address  string `graphql:"address" json:"address"`
	Name     string `graphql:"name" json:"name"`
	Symbol   string `graphql:"symbol" json:"symbol"`
	Decimals int    `graphql:"decimals" json:"decimals"`
	Logo     string `graphql:"logo" json:"logo"`
	ChainID  int64  `graphql:"chainId" json:"chainId"`
}

// SwapTokensClient queries the wallet's GraphQL service for swappable tokens
type SwapTokensClient struct {
	gql *graphql.Client
}

// NewSwapTokensClient creates a new GraphQL client for the given endpoint
func NewSwapTokensClient(endpoint string, httpClient *http.Client) *SwapTokensClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &SwapTokensClient{gql: graphql.NewClient(endpoint, httpClient)}
}

// ValidInputTokens returns the subset of the given mints the aggregator accepts as input
func (c *SwapTokensClient) ValidInputTokens(ctx context.Context, tokens []string) ([]string, error) {
	var q struct {
		JupiterSwapValidInputTokens []string `graphql:"jupiterSwapValidInputTokens(tokens: $tokens)"`
	}
	vars := map[string]interface{}{
		"tokens": tokens,
	}

	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("failed to query valid input tokens: %w", err)
	}

	return q.JupiterSwapValidInputTokens, nil
}

// OutputTokens returns the tokens the given input mint can be swapped into
func (c *SwapTokensClient) OutputTokens(ctx context.Context, inputToken string) ([]OutputToken, error) {
	var q struct {
		JupiterSwapOutputTokens []OutputToken `graphql:"jupiterSwapOutputTokens(inputToken: $inputToken)"`
	}
	vars := map[string]interface{}{
		"inputToken": inputToken,
	}

	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("failed to query output tokens: %w", err)
	}

	return q.JupiterSwapOutputTokens, nil
}
