package swap

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"wallet-swap/pkg/balance"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/metrics"
	"wallet-swap/pkg/types"
)

// FeeEthereumNetwork labels the gas cost of a swap
const FeeEthereumNetwork = "Ethereum network"

// defaultSlippagePercentage is 1%, expressed as a fraction
const defaultSlippagePercentage = 0.01

// allowance(address,address) function ABI
const erc20AllowanceABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"remaining","type":"uint256"}],"type":"function"}]`

// ZeroXAPI is the EVM DEX aggregator
type ZeroXAPI interface {
	GetQuote(ctx context.Context, params client.ZeroXQuoteParams) (*types.ZeroXQuote, error)
}

// EthereumRPC is the subset of the Ethereum client used for swaps
type EthereumRPC interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMTokenList lists the ERC-20 tokens known on a chain
type EVMTokenList interface {
	EVMTokens(ctx context.Context, chainID int64) []types.TokenListEntry
}

// EthereumConfig configures an EthereumBackend
type EthereumConfig struct {
	ChainID int64
	// SlippagePercentage is a fraction, 0.01 for 1%
	SlippagePercentage float64
	// Signer signs outgoing swaps. Nil leaves the backend quote-only.
	Signer *ecdsa.PrivateKey
}

// EthereumBackend swaps ERC-20 tokens and ETH through the 0x aggregator
type EthereumBackend struct {
	zerox  ZeroXAPI
	rpc    EthereumRPC
	tokens EVMTokenList
	config EthereumConfig
	logger logrus.FieldLogger
}

// NewEthereumBackend creates a new Ethereum swap backend
func NewEthereumBackend(zerox ZeroXAPI, rpcClient EthereumRPC, tokens EVMTokenList, cfg EthereumConfig, logger logrus.FieldLogger) *EthereumBackend {
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if cfg.SlippagePercentage <= 0 {
		cfg.SlippagePercentage = defaultSlippagePercentage
	}
	return &EthereumBackend{
		zerox:  zerox,
		rpc:    rpcClient,
		tokens: tokens,
		config: cfg,
		logger: logger.WithField("backend", "ethereum"),
	}
}

// zeroXToken maps native ETH onto the token symbol the aggregator expects
func zeroXToken(mint string) string {
	if mint == types.EthNativeMint || strings.EqualFold(mint, types.ZeroXEthPlaceholder) {
		return types.ZeroXEthPlaceholder
	}
	return mint
}

func isNativeETH(mint string) bool {
	return zeroXToken(mint) == types.ZeroXEthPlaceholder
}

// FetchQuote fetches a 0x quote. Failures are logged and yield nil.
// The taker is only sent for ETH sells; ERC-20 allowances are checked by
// FetchTransaction.
func (e *EthereumBackend) FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) *types.Quote {
	if to == nil {
		e.logger.Debug("no output token selected, skipping quote")
		return nil
	}

	params := client.ZeroXQuoteParams{
		SellToken:          zeroXToken(from.Mint),
		BuyToken:           zeroXToken(to.Mint),
		SellAmount:         fromAmount,
		SlippagePercentage: e.config.SlippagePercentage,
	}
	if isNativeETH(from.Mint) {
		params.TakerAddress = from.WalletPublicKey
	}

	started := time.Now()
	quote, err := e.zerox.GetQuote(ctx, params)
	if err != nil {
		metrics.ObserveQuote(string(types.QuoteKindZeroX), metrics.OutcomeError, started)
		e.logger.WithError(err).WithFields(logrus.Fields{
			"sell_token": from.Mint,
			"buy_token":  to.Mint,
		}).Warn("error fetching swap quote")
		return nil
	}
	if quote.ChainID != 0 && quote.ChainID != e.config.ChainID {
		metrics.ObserveQuote(string(types.QuoteKindZeroX), metrics.OutcomeError, started)
		e.logger.WithFields(logrus.Fields{
			"quote_chain_id": quote.ChainID,
			"chain_id":       e.config.ChainID,
		}).Warn("quote is for a different chain")
		return nil
	}
	metrics.ObserveQuote(string(types.QuoteKindZeroX), metrics.OutcomeSuccess, started)

	return &types.Quote{Kind: types.QuoteKindZeroX, ZeroX: quote}
}

// FetchTransaction builds the unsigned transaction for a quote, RLP encoded
// and base64 wrapped
func (e *EthereumBackend) FetchTransaction(ctx context.Context, from types.Asset, quote *types.Quote) (string, error) {
	if quote == nil || quote.ZeroX == nil {
		return "", ErrQuoteNotFound
	}
	q := quote.ZeroX

	if !common.IsHexAddress(q.To) {
		return "", fmt.Errorf("invalid swap target address: %s", q.To)
	}
	if !common.IsHexAddress(from.WalletPublicKey) {
		return "", fmt.Errorf("invalid wallet address: %s", from.WalletPublicKey)
	}

	data, err := hexutil.Decode(q.Data)
	if err != nil {
		return "", fmt.Errorf("invalid swap calldata: %w", err)
	}

	gas, ok := parseUint(q.Gas)
	if !ok {
		gas, ok = parseUint(q.EstimatedGas)
	}
	if !ok {
		return "", fmt.Errorf("invalid gas limit: %q", q.Gas)
	}

	gasPrice, ok := new(big.Int).SetString(q.GasPrice, 10)
	if !ok {
		return "", fmt.Errorf("invalid gas price: %q", q.GasPrice)
	}

	value := big.NewInt(0)
	if q.Value != "" {
		if value, ok = new(big.Int).SetString(q.Value, 10); !ok {
			return "", fmt.Errorf("invalid value: %q", q.Value)
		}
	}

	if !isNativeETH(from.Mint) {
		if err := e.checkAllowance(ctx, from, q); err != nil {
			return "", err
		}
	}

	nonce, err := e.rpc.PendingNonceAt(ctx, common.HexToAddress(from.WalletPublicKey))
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, common.HexToAddress(q.To), value, gas, gasPrice, data)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// checkAllowance verifies the wallet has approved the quote's allowance target
// for at least the sell amount
func (e *EthereumBackend) checkAllowance(ctx context.Context, from types.Asset, q *types.ZeroXQuote) error {
	if !common.IsHexAddress(q.AllowanceTarget) || common.HexToAddress(q.AllowanceTarget) == (common.Address{}) {
		return nil
	}
	if !common.IsHexAddress(from.Mint) {
		return fmt.Errorf("invalid token contract address: %s", from.Mint)
	}

	sellAmount, ok := new(big.Int).SetString(q.SellAmount, 10)
	if !ok {
		return fmt.Errorf("invalid sell amount: %q", q.SellAmount)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20AllowanceABI))
	if err != nil {
		return fmt.Errorf("failed to parse allowance ABI: %w", err)
	}
	data, err := parsedABI.Pack("allowance", common.HexToAddress(from.WalletPublicKey), common.HexToAddress(q.AllowanceTarget))
	if err != nil {
		return fmt.Errorf("failed to pack allowance data: %w", err)
	}

	token := common.HexToAddress(from.Mint)
	result, err := e.rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("failed to call allowance: %w", err)
	}

	allowance := new(big.Int).SetBytes(result)
	if allowance.Cmp(sellAmount) < 0 {
		return fmt.Errorf("%w: %s allows %s to spend %s, swap needs %s",
			ErrInsufficientAllowance, from.WalletPublicKey, q.AllowanceTarget, allowance, sellAmount)
	}
	return nil
}

func parseUint(s string) (uint64, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

// EstimateFees reports the gas cost quoted by the aggregator
func (e *EthereumBackend) EstimateFees(ctx context.Context, to *types.Asset, quote *types.Quote, transaction string) types.TransactionFees {
	fee := big.NewInt(0)

	if quote != nil && quote.ZeroX != nil {
		gasPrice, okPrice := new(big.Int).SetString(quote.ZeroX.GasPrice, 10)
		gas, okGas := new(big.Int).SetString(quote.ZeroX.Gas, 10)
		if !okGas {
			gas, okGas = new(big.Int).SetString(quote.ZeroX.EstimatedGas, 10)
		}
		if okPrice && okGas {
			fee.Mul(gasPrice, gas)
		} else {
			metrics.IncFeeFallback(string(types.BlockchainEthereum), "network")
			e.logger.WithFields(logrus.Fields{
				"gas":       quote.ZeroX.Gas,
				"gas_price": quote.ZeroX.GasPrice,
			}).Debug("failed to parse quoted gas")
		}
	}

	return newFees(map[string]*big.Int{FeeEthereumNetwork: fee})
}

// SendTransaction signs and submits a transaction built by FetchTransaction
func (e *EthereumBackend) SendTransaction(ctx context.Context, req SendRequest) (string, error) {
	if req.To == nil || req.FromToken == nil || req.ToToken == nil || req.Quote == nil || req.Quote.ZeroX == nil {
		return "", ErrTokensNotLoaded
	}
	if e.config.Signer == nil {
		return "", ErrSignerNotConfigured
	}

	raw, err := base64.StdEncoding.DecodeString(req.Transaction)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("failed to parse transaction: %w", err)
	}
	if tx.To() == nil || !strings.EqualFold(tx.To().Hex(), req.Quote.ZeroX.To) {
		return "", fmt.Errorf("transaction target does not match quote")
	}

	sender := crypto.PubkeyToAddress(e.config.Signer.PublicKey)
	if !strings.EqualFold(sender.Hex(), req.From.WalletPublicKey) {
		return "", fmt.Errorf("signer %s does not own wallet %s", sender.Hex(), req.From.WalletPublicKey)
	}

	fees := e.EstimateFees(ctx, req.To, req.Quote, req.Transaction)
	summary := newSummary(req, fees, QuotePriceImpact(req.Quote), 0)
	if err := req.approve(summary); err != nil {
		return "", err
	}

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(big.NewInt(e.config.ChainID)), e.config.Signer)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := e.rpc.SendTransaction(ctx, signedTx); err != nil {
		metrics.IncSwapTransaction(string(types.BlockchainEthereum), metrics.OutcomeError)
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	metrics.IncSwapTransaction(string(types.BlockchainEthereum), metrics.OutcomeSuccess)

	hash := signedTx.Hash().Hex()
	e.logger.WithFields(logrus.Fields{
		"hash": hash,
		"rate": summary.Rate,
	}).Info("swap transaction sent")

	return hash, nil
}

// AvailableForSwapOffset returns the balance unchanged; gas is covered by the
// quote's fee estimate
func (e *EthereumBackend) AvailableForSwapOffset(from types.Asset, available *big.Int) *big.Int {
	if available == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(available)
}

// ValidInputTokens keeps listed tokens the wallet holds. Native ETH is always valid.
func (e *EthereumBackend) ValidInputTokens(ctx context.Context, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	listed := make(map[string]bool)
	for _, entry := range e.tokens.EVMTokens(ctx, e.config.ChainID) {
		listed[strings.ToLower(entry.Address)] = true
	}

	out := make([]types.TokenBalance, 0, len(balances))
	for _, b := range balances {
		held := b.Amount != nil && b.Amount.Sign() > 0
		if (listed[strings.ToLower(b.Token)] && held) || b.Token == types.EthNativeMint {
			out = append(out, b)
		}
	}
	return out, nil
}

// OutputTokens lists the tokens on the active chain plus native ETH, with the
// wallet's balance of each
func (e *EthereumBackend) OutputTokens(ctx context.Context, inputMint string, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	entries := append(e.tokens.EVMTokens(ctx, e.config.ChainID), balance.NativeETHEntry(e.config.ChainID))

	byToken := make(map[string]types.TokenBalance, len(balances))
	for _, b := range balances {
		byToken[strings.ToLower(b.Token)] = b
	}

	out := make([]types.TokenBalance, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" || entry.Symbol == "" || entry.Address == "" || entry.ChainID != e.config.ChainID {
			continue
		}

		amount := big.NewInt(0)
		if b, ok := byToken[strings.ToLower(entry.Address)]; ok && b.Amount != nil {
			amount = b.Amount
		}
		out = append(out, balance.NewTokenBalance(entry, amount))
	}

	return out, nil
}
