package swap

import (
	"context"
	"errors"
	"math/big"
	"time"

	"wallet-swap/pkg/types"
)

var (
	// ErrQuoteNotFound is returned when a transaction is requested without a quote
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrTokensNotLoaded is returned when a swap is sent before both tokens and a quote are known
	ErrTokensNotLoaded = errors.New("tokens not loaded")
	// ErrSignerNotConfigured is returned when no key is available to sign a swap
	ErrSignerNotConfigured = errors.New("signer not configured")
	// ErrSwapRejected is returned when the approval hook declines a swap
	ErrSwapRejected = errors.New("swap rejected")
	// ErrInsufficientAllowance is returned when an ERC-20 sell is not approved for the exchange
	ErrInsufficientAllowance = errors.New("insufficient token allowance")
)

// approvalWindow is how long a built swap summary stays valid for approval
const approvalWindow = 20 * time.Second

// Backend executes swaps on one chain
type Backend interface {
	// FetchQuote returns the best quote, or nil if none could be fetched
	FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) *types.Quote
	// FetchTransaction returns the serialized, unsigned swap transaction for a quote
	FetchTransaction(ctx context.Context, from types.Asset, quote *types.Quote) (string, error)
	// EstimateFees returns the network fees the transaction will incur. It never fails.
	EstimateFees(ctx context.Context, to *types.Asset, quote *types.Quote, transaction string) types.TransactionFees
	// SendTransaction signs and submits a swap transaction and returns its signature
	SendTransaction(ctx context.Context, req SendRequest) (string, error)
	// AvailableForSwapOffset adjusts a balance for the amounts a swap must leave behind
	AvailableForSwapOffset(from types.Asset, available *big.Int) *big.Int
	// ValidInputTokens filters wallet balances to the tokens that can be swapped from
	ValidInputTokens(ctx context.Context, balances []types.TokenBalance) ([]types.TokenBalance, error)
	// OutputTokens lists the tokens an input can be swapped to, joined with wallet balances
	OutputTokens(ctx context.Context, inputMint string, balances []types.TokenBalance) ([]types.TokenBalance, error)
}

// SendRequest carries everything needed to submit a swap
type SendRequest struct {
	From        types.Asset
	To          *types.Asset
	FromAmount  *big.Int
	FromToken   *types.TokenBalance
	ToToken     *types.TokenBalance
	Quote       *types.Quote
	Transaction string

	// Approve, when set, is shown the summary before signing.
	// Returning false aborts the swap with ErrSwapRejected.
	Approve func(Summary) bool
}

// Summary describes a swap about to be signed
type Summary struct {
	FromToken   string                `json:"from_token"`
	ToToken     string                `json:"to_token"`
	FromAmount  string                `json:"from_amount"`
	ToAmount    string                `json:"to_amount"`
	FeePercent  float64               `json:"fee_percent"`
	Fees        types.TransactionFees `json:"transaction_fees"`
	PriceImpact string                `json:"price_impact"`
	Rate        string                `json:"rate"`
	ExpiresAt   time.Time             `json:"expires_at"`
}

func newSummary(req SendRequest, fees types.TransactionFees, priceImpactPct float64, feeBps int) Summary {
	fromAmount := req.FromAmount
	if fromAmount == nil {
		fromAmount = big.NewInt(0)
	}
	outAmount := req.Quote.OutAmount()

	return Summary{
		FromToken:   req.FromToken.Token,
		ToToken:     req.ToToken.Token,
		FromAmount:  fromAmount.String(),
		ToAmount:    outAmount.String(),
		FeePercent:  float64(feeBps) / 100,
		Fees:        fees,
		PriceImpact: DisplayPriceImpact(priceImpactPct),
		Rate:        DisplayRate(outAmount, fromAmount, req.FromToken.Decimals(), req.ToToken.Decimals()),
		ExpiresAt:   time.Now().Add(approvalWindow),
	}
}

// approve runs the approval hook, if any
func (r SendRequest) approve(summary Summary) error {
	if r.Approve == nil {
		return nil
	}
	if !r.Approve(summary) {
		return ErrSwapRejected
	}
	if time.Now().After(summary.ExpiresAt) {
		return errors.New("swap approval expired")
	}
	return nil
}

func newFees(entries map[string]*big.Int) types.TransactionFees {
	total := big.NewInt(0)
	for _, v := range entries {
		total.Add(total, v)
	}
	return types.TransactionFees{Fees: entries, Total: total}
}
