package swap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wallet-swap/pkg/client"
	"wallet-swap/pkg/metrics"
	"wallet-swap/pkg/types"
)

const (
	// TokenAccountRentExemptionLamports is the rent-exempt minimum of an SPL token account
	TokenAccountRentExemptionLamports = 2_039_280
	// NativeAccountRentExemptionLamports is the rent-exempt minimum of a system account
	NativeAccountRentExemptionLamports = 890_880
	// DefaultSolanaNetworkFee is assumed whenever the fee cannot be queried
	DefaultSolanaNetworkFee = 5000
)

// Fee labels
const (
	FeeSolanaNetwork       = "Solana network"
	FeeOneTimeTokenAccount = "One-time token account"
)

// JupiterAPI is the Solana aggregator
type JupiterAPI interface {
	GetQuote(ctx context.Context, params client.QuoteParams) (*types.JupiterQuote, error)
	GetSwapTransaction(ctx context.Context, quote *types.JupiterQuote, userPublicKey string) (string, error)
}

// SwapTokensAPI lists the tokens the aggregator can route
type SwapTokensAPI interface {
	ValidInputTokens(ctx context.Context, tokens []string) ([]string, error)
	OutputTokens(ctx context.Context, inputToken string) ([]client.OutputToken, error)
}

// SolanaRPC is the subset of the Solana RPC client used for swaps
type SolanaRPC interface {
	GetFeeForMessage(ctx context.Context, message string, commitment rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// SolanaConfig configures a SolanaBackend
type SolanaConfig struct {
	SlippageBps   int
	Commitment    rpc.CommitmentType
	SkipPreflight bool
	// Signer signs outgoing swaps. Nil leaves the backend quote-only.
	Signer *solana.PrivateKey
}

// SolanaBackend swaps Solana tokens through the Jupiter aggregator
type SolanaBackend struct {
	jupiter JupiterAPI
	tokens  SwapTokensAPI
	rpc     SolanaRPC
	config  SolanaConfig
	logger  logrus.FieldLogger
}

// NewSolanaBackend creates a new Solana swap backend
func NewSolanaBackend(jupiter JupiterAPI, tokens SwapTokensAPI, rpcClient SolanaRPC, cfg SolanaConfig, logger logrus.FieldLogger) *SolanaBackend {
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = client.DefaultSlippageBps
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	return &SolanaBackend{
		jupiter: jupiter,
		tokens:  tokens,
		rpc:     rpcClient,
		config:  cfg,
		logger:  logger.WithField("backend", "solana"),
	}
}

// routeMint maps native SOL onto wrapped SOL, which is what the aggregator routes
func routeMint(mint string) string {
	if mint == types.SolNativeMint {
		return types.WSOLMint
	}
	return mint
}

// FetchQuote fetches a Jupiter quote. Failures are logged and yield nil.
func (s *SolanaBackend) FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) *types.Quote {
	if to == nil {
		s.logger.Debug("no output token selected, skipping quote")
		return nil
	}

	started := time.Now()
	quote, err := s.jupiter.GetQuote(ctx, client.QuoteParams{
		InputMint:   routeMint(from.Mint),
		OutputMint:  routeMint(to.Mint),
		Amount:      fromAmount,
		SlippageBps: s.config.SlippageBps,
	})
	if err != nil {
		metrics.ObserveQuote(string(types.QuoteKindJupiter), metrics.OutcomeError, started)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"input_mint":  from.Mint,
			"output_mint": to.Mint,
		}).Warn("error fetching swap routes")
		return nil
	}
	metrics.ObserveQuote(string(types.QuoteKindJupiter), metrics.OutcomeSuccess, started)

	return &types.Quote{Kind: types.QuoteKindJupiter, Jupiter: quote}
}

// FetchTransaction asks the aggregator for the swap transaction of a quote
func (s *SolanaBackend) FetchTransaction(ctx context.Context, from types.Asset, quote *types.Quote) (string, error) {
	if quote == nil || quote.Jupiter == nil {
		return "", ErrQuoteNotFound
	}
	return s.jupiter.GetSwapTransaction(ctx, quote.Jupiter, from.WalletPublicKey)
}

// EstimateFees estimates the network fee and any token account the swap creates.
// Sub-estimates fall back to defaults and an overall failure reports zero fees.
func (s *SolanaBackend) EstimateFees(ctx context.Context, to *types.Asset, quote *types.Quote, transaction string) types.TransactionFees {
	var networkFee, accountFee uint64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		networkFee = s.networkFee(gctx, quote, transaction)
		return nil
	})
	g.Go(func() error {
		if to == nil {
			return errors.New("to is nil")
		}
		accountFee = s.tokenAccountFee(gctx, *to)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.WithError(err).Warn("failed to estimate fees")
		networkFee, accountFee = 0, 0
	}

	fees := map[string]*big.Int{
		FeeSolanaNetwork: new(big.Int).SetUint64(networkFee),
	}
	if accountFee > 0 {
		fees[FeeOneTimeTokenAccount] = new(big.Int).SetUint64(accountFee)
	}
	return newFees(fees)
}

func (s *SolanaBackend) networkFee(ctx context.Context, quote *types.Quote, transaction string) uint64 {
	if quote == nil || transaction == "" {
		// No routes yet, assume a single signature
		return DefaultSolanaNetworkFee
	}

	tx, err := decodeSolanaTransaction(transaction)
	if err != nil {
		metrics.IncFeeFallback(string(types.BlockchainSolana), "network")
		s.logger.WithError(err).Debug("failed to decode transaction for fee estimate")
		return DefaultSolanaNetworkFee
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		metrics.IncFeeFallback(string(types.BlockchainSolana), "network")
		return DefaultSolanaNetworkFee
	}

	result, err := s.rpc.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(message), s.config.Commitment)
	if err != nil || result == nil || result.Value == nil || *result.Value == 0 {
		metrics.IncFeeFallback(string(types.BlockchainSolana), "network")
		if err != nil {
			s.logger.WithError(err).Debug("failed to get fee for message")
		}
		return DefaultSolanaNetworkFee
	}

	return *result.Value
}

// tokenAccountFee is the rent of the output token account when the swap must create it
func (s *SolanaBackend) tokenAccountFee(ctx context.Context, to types.Asset) uint64 {
	if to.Mint == types.SolNativeMint || to.Mint == types.WSOLMint {
		return 0
	}

	owner, err := solana.PublicKeyFromBase58(to.WalletPublicKey)
	if err != nil {
		s.logger.WithError(err).Warn("invalid output wallet address")
		return 0
	}
	mint, err := solana.PublicKeyFromBase58(to.Mint)
	if err != nil {
		s.logger.WithError(err).Warn("invalid output mint")
		return 0
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		s.logger.WithError(err).Warn("failed to derive associated token address")
		return 0
	}

	balance, err := s.rpc.GetBalance(ctx, ata, s.config.Commitment)
	if err != nil {
		metrics.IncFeeFallback(string(types.BlockchainSolana), "token_account")
		s.logger.WithError(err).Warn("failed to check output token account")
		return 0
	}
	if balance.Value == 0 {
		return TokenAccountRentExemptionLamports
	}
	return 0
}

// SendTransaction decodes, signs and submits a Jupiter swap transaction
func (s *SolanaBackend) SendTransaction(ctx context.Context, req SendRequest) (string, error) {
	if req.To == nil || req.FromToken == nil || req.ToToken == nil || req.Quote == nil || req.Quote.Jupiter == nil {
		return "", ErrTokensNotLoaded
	}
	if s.config.Signer == nil {
		return "", ErrSignerNotConfigured
	}

	tx, err := decodeSolanaTransaction(req.Transaction)
	if err != nil {
		return "", err
	}

	fees := s.EstimateFees(ctx, req.To, req.Quote, req.Transaction)
	var feeBps int
	if req.Quote.Jupiter.PlatformFee != nil {
		feeBps = req.Quote.Jupiter.PlatformFee.FeeBps
	}
	summary := newSummary(req, fees, QuotePriceImpact(req.Quote), feeBps)
	if err := req.approve(summary); err != nil {
		return "", err
	}

	signer := *s.config.Signer
	publicKey := signer.PublicKey()

	// The aggregator fills signature slots with placeholders; the wallet is the only signer
	tx.Signatures = nil
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(publicKey) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.config.SkipPreflight,
		PreflightCommitment: s.config.Commitment,
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		metrics.IncSwapTransaction(string(types.BlockchainSolana), metrics.OutcomeError)
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	metrics.IncSwapTransaction(string(types.BlockchainSolana), metrics.OutcomeSuccess)

	s.logger.WithFields(logrus.Fields{
		"signature": sig.String(),
		"rate":      summary.Rate,
	}).Info("swap transaction sent")

	return sig.String(), nil
}

// decodeSolanaTransaction reads a base64 legacy or versioned transaction
func decodeSolanaTransaction(transaction string) (*solana.Transaction, error) {
	buf, err := base64.StdEncoding.DecodeString(transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}

	return tx, nil
}

// AvailableForSwapOffset keeps rent for a new token account and the wallet itself
// out of a native SOL balance
func (s *SolanaBackend) AvailableForSwapOffset(from types.Asset, available *big.Int) *big.Int {
	if available == nil {
		return big.NewInt(0)
	}
	if from.Mint != types.SolNativeMint {
		return new(big.Int).Set(available)
	}

	out := new(big.Int).Sub(available, big.NewInt(TokenAccountRentExemptionLamports))
	out.Sub(out, big.NewInt(NativeAccountRentExemptionLamports))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// ValidInputTokens keeps the balances the aggregator can swap from. Native SOL is always valid.
func (s *SolanaBackend) ValidInputTokens(ctx context.Context, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	mints := make([]string, 0, len(balances))
	for _, b := range balances {
		mints = append(mints, b.Token)
	}

	valid, err := s.tokens.ValidInputTokens(ctx, mints)
	if err != nil {
		return nil, fmt.Errorf("failed to load valid input tokens: %w", err)
	}

	set := make(map[string]bool, len(valid))
	for _, mint := range valid {
		set[mint] = true
	}

	out := make([]types.TokenBalance, 0, len(balances))
	for _, b := range balances {
		if set[b.Token] || b.Token == types.SolNativeMint {
			out = append(out, b)
		}
	}
	return out, nil
}

// OutputTokens lists the tokens an input can be swapped to, with the wallet's
// balance of each. Wrapped SOL is reported with the native SOL balance.
func (s *SolanaBackend) OutputTokens(ctx context.Context, inputMint string, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	outputs, err := s.tokens.OutputTokens(ctx, routeMint(inputMint))
	if err != nil {
		return nil, fmt.Errorf("failed to load output tokens: %w", err)
	}

	byToken := make(map[string]types.TokenBalance, len(balances))
	for _, b := range balances {
		byToken[b.Token] = b
	}

	out := make([]types.TokenBalance, 0, len(outputs))
	for _, t := range outputs {
		lookup := t.Address
		name := t.Name
		if t.Address == types.WSOLMint {
			lookup = types.SolNativeMint
			name = "Solana"
		}

		entry := &types.TokenListEntry{
			Address:    t.Address,
			Name:       name,
			Symbol:     t.Symbol,
			Decimals:   t.Decimals,
			LogoURI:    t.Logo,
			ChainID:    t.ChainID,
			Blockchain: types.BlockchainSolana,
		}

		tb := types.TokenBalance{
			Token:          t.Address,
			Amount:         big.NewInt(0),
			DisplayAmount:  "0",
			TokenListEntry: entry,
		}
		if b, ok := byToken[lookup]; ok {
			tb.ID = b.ID
			if b.Amount != nil {
				tb.Amount = new(big.Int).Set(b.Amount)
			}
			tb.DisplayAmount = b.DisplayAmount
		}
		out = append(out, tb)
	}

	return out, nil
}
