package types

import (
	"math/big"
	"strings"
)

// Blockchain identifies the chain an asset lives on
type Blockchain string

const (
	BlockchainSolana   Blockchain = "solana"
	BlockchainEthereum Blockchain = "ethereum"
)

// ParseBlockchain normalizes user and API chain names
func ParseBlockchain(name string) Blockchain {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sol", "solana":
		return BlockchainSolana
	case "eth", "ethereum":
		return BlockchainEthereum
	default:
		return Blockchain(strings.ToLower(strings.TrimSpace(name)))
	}
}

// Well-known token identifiers
const (
	// SolNativeMint is the placeholder mint used for native SOL balances
	SolNativeMint = "11111111111111111111111111111111"
	// WSOLMint is the wrapped SOL mint the aggregator routes through
	WSOLMint = "So11111111111111111111111111111111111111112"
	// EthNativeMint is the placeholder address used for native ETH balances
	EthNativeMint = "0x0000000000000000000000000000000000000000"
	// ZeroXEthPlaceholder is the token symbol 0x expects for native ETH
	ZeroXEthPlaceholder = "ETH"
)

// Asset identifies one side of a swap
type Asset struct {
	WalletPublicKey string     `json:"wallet_public_key"`
	Mint            string     `json:"mint"`
	Blockchain      Blockchain `json:"blockchain"`
}

// QuoteKind tags the provider a quote came from
type QuoteKind string

const (
	QuoteKindJupiter QuoteKind = "jupiter"
	QuoteKindZeroX   QuoteKind = "0x"
)

// Quote is a provider-tagged swap quote. Exactly one of the data fields is set,
// matching Kind.
type Quote struct {
	Kind    QuoteKind     `json:"kind"`
	Jupiter *JupiterQuote `json:"jupiter,omitempty"`
	ZeroX   *ZeroXQuote   `json:"zero_x,omitempty"`
}

// InAmount returns the quoted input amount in base units
func (q *Quote) InAmount() *big.Int {
	switch {
	case q.Kind == QuoteKindJupiter && q.Jupiter != nil:
		return parseBig(q.Jupiter.InAmount)
	case q.Kind == QuoteKindZeroX && q.ZeroX != nil:
		return parseBig(q.ZeroX.SellAmount)
	default:
		return big.NewInt(0)
	}
}

// OutAmount returns the quoted output amount in base units
func (q *Quote) OutAmount() *big.Int {
	switch {
	case q.Kind == QuoteKindJupiter && q.Jupiter != nil:
		return parseBig(q.Jupiter.OutAmount)
	case q.Kind == QuoteKindZeroX && q.ZeroX != nil:
		return parseBig(q.ZeroX.BuyAmount)
	default:
		return big.NewInt(0)
	}
}

func parseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// JupiterQuote mirrors the aggregator's quote response
type JupiterQuote struct {
	InputMint            string       `json:"inputMint"`
	InAmount             string       `json:"inAmount"`
	OutputMint           string       `json:"outputMint"`
	OutAmount            string       `json:"outAmount"`
	OtherAmountThreshold string       `json:"otherAmountThreshold"`
	SwapMode             string       `json:"swapMode"`
	SlippageBps          int          `json:"slippageBps"`
	PlatformFee          *PlatformFee `json:"platformFee"`
	PriceImpactPct       string       `json:"priceImpactPct"`
	RoutePlan            []RoutePlan  `json:"routePlan"`
	ContextSlot          int64        `json:"contextSlot,omitempty"`
	TimeTaken            float64      `json:"timeTaken,omitempty"`
}

// PlatformFee is the integrator fee taken by the aggregator
type PlatformFee struct {
	Amount string `json:"amount"`
	FeeBps int    `json:"feeBps"`
}

// RoutePlan is one leg of an aggregator route
type RoutePlan struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// SwapInfo describes the market used by a route leg
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// ZeroXQuote mirrors the 0x swap quote response
type ZeroXQuote struct {
	ChainID              int64  `json:"chainId"`
	Price                string `json:"price"`
	GuaranteedPrice      string `json:"guaranteedPrice"`
	EstimatedPriceImpact string `json:"estimatedPriceImpact"`
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	Gas                  string `json:"gas"`
	GasPrice             string `json:"gasPrice"`
	EstimatedGas         string `json:"estimatedGas"`
	ProtocolFee          string `json:"protocolFee"`
	MinimumProtocolFee   string `json:"minimumProtocolFee"`
	BuyTokenAddress      string `json:"buyTokenAddress"`
	SellTokenAddress     string `json:"sellTokenAddress"`
	BuyAmount            string `json:"buyAmount"`
	SellAmount           string `json:"sellAmount"`
	AllowanceTarget      string `json:"allowanceTarget"`
	SellTokenToEthRate   string `json:"sellTokenToEthRate"`
	BuyTokenToEthRate    string `json:"buyTokenToEthRate"`
}

// TransactionFees is a labelled breakdown of network fees in base units
type TransactionFees struct {
	Fees  map[string]*big.Int `json:"fees"`
	Total *big.Int            `json:"total"`
}

// TokenListEntry is token metadata from the static or remote token list
type TokenListEntry struct {
	Address    string     `json:"address"`
	Name       string     `json:"name"`
	Symbol     string     `json:"symbol"`
	Decimals   int        `json:"decimals"`
	LogoURI    string     `json:"logoURI,omitempty"`
	ChainID    int64      `json:"chainId"`
	Blockchain Blockchain `json:"blockchain"`
}

// TokenBalance is a wallet-held amount for a token
type TokenBalance struct {
	ID             string          `json:"id"`
	Token          string          `json:"token"`
	Amount         *big.Int        `json:"amount"`
	DisplayAmount  string          `json:"display_amount"`
	TokenListEntry *TokenListEntry `json:"token_list_entry,omitempty"`
}

// Decimals returns the token decimals, or 0 if metadata is missing
func (b *TokenBalance) Decimals() int {
	if b == nil || b.TokenListEntry == nil {
		return 0
	}
	return b.TokenListEntry.Decimals
}
