package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wallet-swap/pkg/types"
	"wallet-swap/pkg/units"
)

// balanceOf(address) function ABI
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

const ethLogoURI = "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/ethereum/info/logo.png"

// maxConcurrentLookups bounds parallel RPC calls when loading a wallet
const maxConcurrentLookups = 8

// SolanaRPC is the subset of the Solana RPC client used for balances
type SolanaRPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// EthereumRPC is the subset of the Ethereum client used for balances
type EthereumRPC interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenSource lists the tokens a wallet is checked against
type TokenSource interface {
	ForChain(ctx context.Context, chain types.Blockchain) []types.TokenListEntry
	EVMTokens(ctx context.Context, chainID int64) []types.TokenListEntry
}

// Service looks up wallet balances over RPC
type Service struct {
	solana     SolanaRPC
	ethereum   EthereumRPC
	tokens     TokenSource
	commitment rpc.CommitmentType
	chainID    int64
	logger     logrus.FieldLogger

	abiOnce sync.Once
	erc20   abi.ABI
	abiErr  error
}

// Options configure a Service. Either RPC client may be nil when the chain is unused.
type Options struct {
	Solana     SolanaRPC
	Ethereum   EthereumRPC
	Tokens     TokenSource
	Commitment rpc.CommitmentType
	ChainID    int64
}

// NewService creates a new balance service
func NewService(opts Options, logger logrus.FieldLogger) *Service {
	commitment := opts.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	chainID := opts.ChainID
	if chainID == 0 {
		chainID = 1
	}
	return &Service{
		solana:     opts.Solana,
		ethereum:   opts.Ethereum,
		tokens:     opts.Tokens,
		commitment: commitment,
		chainID:    chainID,
		logger:     logger,
	}
}

// Balance returns the base-unit balance of an asset
func (s *Service) Balance(ctx context.Context, asset types.Asset) (*big.Int, error) {
	switch asset.Blockchain {
	case types.BlockchainSolana:
		if asset.Mint == types.SolNativeMint {
			return s.NativeSOL(ctx, asset.WalletPublicKey)
		}
		return s.SPLToken(ctx, asset.WalletPublicKey, asset.Mint)
	case types.BlockchainEthereum:
		if asset.Mint == types.EthNativeMint || strings.EqualFold(asset.Mint, types.ZeroXEthPlaceholder) {
			return s.NativeETH(ctx, asset.WalletPublicKey)
		}
		return s.ERC20(ctx, asset.WalletPublicKey, asset.Mint)
	default:
		return nil, fmt.Errorf("balance lookup not supported for chain: %s", asset.Blockchain)
	}
}

// NativeSOL returns the lamport balance of a wallet
func (s *Service) NativeSOL(ctx context.Context, owner string) (*big.Int, error) {
	if s.solana == nil {
		return nil, fmt.Errorf("solana RPC not configured")
	}
	account, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}

	result, err := s.solana.GetBalance(ctx, account, s.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return new(big.Int).SetUint64(result.Value), nil
}

// SPLToken returns the balance held in the owner's associated token account.
// A missing account counts as zero.
func (s *Service) SPLToken(ctx context.Context, owner, mint string) (*big.Int, error) {
	if s.solana == nil {
		return nil, fmt.Errorf("solana RPC not configured")
	}
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	result, err := s.solana.GetTokenAccountBalance(ctx, ata, s.commitment)
	if err != nil {
		if isAccountNotFound(err) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if result == nil || result.Value == nil {
		return big.NewInt(0), nil
	}

	amount, ok := new(big.Int).SetString(result.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse token balance: %q", result.Value.Amount)
	}

	return amount, nil
}

func isAccountNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "not found")
}

// NativeETH returns the wei balance of a wallet
func (s *Service) NativeETH(ctx context.Context, owner string) (*big.Int, error) {
	if s.ethereum == nil {
		return nil, fmt.Errorf("ethereum RPC not configured")
	}
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid wallet address: %s", owner)
	}

	balance, err := s.ethereum.BalanceAt(ctx, common.HexToAddress(owner), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// ERC20 returns the token balance of a wallet via balanceOf
func (s *Service) ERC20(ctx context.Context, owner, token string) (*big.Int, error) {
	if s.ethereum == nil {
		return nil, fmt.Errorf("ethereum RPC not configured")
	}
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid wallet address: %s", owner)
	}
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token contract address: %s", token)
	}

	parsedABI, err := s.erc20ABI()
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	tokenAddress := common.HexToAddress(token)
	result, err := s.ethereum.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

func (s *Service) erc20ABI() (abi.ABI, error) {
	s.abiOnce.Do(func() {
		s.erc20, s.abiErr = abi.JSON(strings.NewReader(erc20BalanceOfABI))
		if s.abiErr != nil {
			s.abiErr = fmt.Errorf("failed to parse balanceOf ABI: %w", s.abiErr)
		}
	})
	return s.erc20, s.abiErr
}

// Wallet loads the balances of every known token on a chain for one wallet.
// Tokens whose lookup fails are logged and reported with a zero balance.
func (s *Service) Wallet(ctx context.Context, chain types.Blockchain, owner string) ([]types.TokenBalance, error) {
	entries, err := s.walletTokens(ctx, chain)
	if err != nil {
		return nil, err
	}

	balances := make([]types.TokenBalance, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i := range entries {
		i := i
		entry := entries[i]
		g.Go(func() error {
			amount, err := s.Balance(gctx, types.Asset{
				WalletPublicKey: owner,
				Mint:            entry.Address,
				Blockchain:      chain,
			})
			if err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"chain": chain,
					"token": entry.Symbol,
				}).Warn("failed to load token balance")
				amount = big.NewInt(0)
			}
			balances[i] = NewTokenBalance(entry, amount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return balances, nil
}

func (s *Service) walletTokens(ctx context.Context, chain types.Blockchain) ([]types.TokenListEntry, error) {
	if s.tokens == nil {
		return nil, fmt.Errorf("token list not configured")
	}
	switch chain {
	case types.BlockchainSolana:
		return s.tokens.ForChain(ctx, chain), nil
	case types.BlockchainEthereum:
		entries := []types.TokenListEntry{NativeETHEntry(s.chainID)}
		return append(entries, s.tokens.EVMTokens(ctx, s.chainID)...), nil
	default:
		return nil, fmt.Errorf("balance lookup not supported for chain: %s", chain)
	}
}

// NativeETHEntry is the token list entry used for native ETH
func NativeETHEntry(chainID int64) types.TokenListEntry {
	return types.TokenListEntry{
		Address:    types.EthNativeMint,
		Name:       "Ethereum",
		Symbol:     "ETH",
		Decimals:   18,
		LogoURI:    ethLogoURI,
		ChainID:    chainID,
		Blockchain: types.BlockchainEthereum,
	}
}

// NewTokenBalance pairs a token list entry with an amount
func NewTokenBalance(entry types.TokenListEntry, amount *big.Int) types.TokenBalance {
	if amount == nil {
		amount = big.NewInt(0)
	}
	e := entry
	return types.TokenBalance{
		ID:             fmt.Sprintf("%s/%s", entry.Blockchain, entry.Address),
		Token:          entry.Address,
		Amount:         amount,
		DisplayAmount:  units.FromBaseUnits(amount, entry.Decimals),
		TokenListEntry: &e,
	}
}
