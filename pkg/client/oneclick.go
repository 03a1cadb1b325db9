package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"wallet-swap/pkg/types"
)

// SolanaMainnetChainID is the chain id the token list uses for Solana mainnet
const SolanaMainnetChainID = 101

// OneClickClient wraps the 1Click SDK. It is only used as a remote source of
// token metadata.
type OneClickClient struct {
	client   *oneclick.APIClient
	jwtToken string
}

// NewOneClickClient creates a new 1Click API client. baseURL and jwtToken may be empty.
func NewOneClickClient(baseURL, jwtToken string, httpClient *http.Client) *OneClickClient {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &OneClickClient{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
	}
}

// authContext attaches the bearer token when one is configured
func (c *OneClickClient) authContext(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: httpResp.StatusCode}
	}

	return resp, nil
}

// TokenEntries converts the supported tokens on the given chains into token list entries
func (c *OneClickClient) TokenEntries(ctx context.Context, chains ...types.Blockchain) ([]types.TokenListEntry, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[types.Blockchain]bool, len(chains))
	for _, chain := range chains {
		wanted[chain] = true
	}

	entries := make([]types.TokenListEntry, 0, len(tokens))
	for _, token := range tokens {
		chain := types.ParseBlockchain(token.GetBlockchain())
		if len(wanted) > 0 && !wanted[chain] {
			continue
		}
		entries = append(entries, ToTokenListEntry(token))
	}

	return entries, nil
}

// FindTokenOnChain searches for a token by symbol on a specific chain
func (c *OneClickClient) FindTokenOnChain(ctx context.Context, symbol string, chain types.Blockchain) (*types.TokenListEntry, error) {
	entries, err := c.TokenEntries(ctx, chain)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if strings.EqualFold(entry.Symbol, symbol) {
			return &entry, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
}

// ToTokenListEntry maps a 1Click token onto a token list entry.
// Native assets come back without a contract address.
func ToTokenListEntry(token oneclick.TokenResponse) types.TokenListEntry {
	chain := types.ParseBlockchain(token.GetBlockchain())

	address := token.GetContractAddress()
	if address == "" {
		switch chain {
		case types.BlockchainSolana:
			address = types.SolNativeMint
		case types.BlockchainEthereum:
			address = types.EthNativeMint
		}
	}

	var chainID int64
	switch chain {
	case types.BlockchainSolana:
		chainID = SolanaMainnetChainID
	case types.BlockchainEthereum:
		chainID = 1
	}

	return types.TokenListEntry{
		Address:    address,
		Name:       token.GetSymbol(),
		Symbol:     strings.ToUpper(token.GetSymbol()),
		Decimals:   int(token.GetDecimals()),
		ChainID:    chainID,
		Blockchain: chain,
	}
}
