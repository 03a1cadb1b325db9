package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wallet-swap/config"
	"wallet-swap/pkg/balance"
	"wallet-swap/pkg/client"
	"wallet-swap/pkg/history"
	"wallet-swap/pkg/metrics"
	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/tokens"
	"wallet-swap/pkg/types"
)

// app holds the services every command is built from
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *tokens.Registry
	balances *balance.Service
	router   *swap.Router
	history  *history.Storage
	oneClick *client.OneClickClient

	solanaRPC *rpc.Client
	ethClient *ethclient.Client

	wallets map[types.Blockchain]string
}

// mustApp builds the app or exits, the way every command starts
func mustApp(cmd *cobra.Command) *app {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return a
}

func newApp(cmd *cobra.Command) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, verbose)
	metrics.RegisterMetrics(logger)

	solanaSigner, err := parseSolanaKey(cfg.Solana.PrivateKey)
	if err != nil {
		return nil, err
	}
	ethSigner, err := parseEthereumKey(cfg.Ethereum.PrivateKey)
	if err != nil {
		return nil, err
	}

	wallets, err := walletAddresses(cfg, solanaSigner, ethSigner)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	oneClick := client.NewOneClickClient(cfg.OneClick.BaseURL, cfg.OneClick.JWTToken, httpClient)
	registry, err := tokens.NewRegistry(oneClick, logger)
	if err != nil {
		return nil, err
	}

	solanaRPC := rpc.New(cfg.Solana.RPCURL)
	ethClient, err := ethclient.Dial(cfg.Ethereum.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum rpc: %w", err)
	}

	commitment := rpc.CommitmentType(cfg.Solana.Commitment)

	balances := balance.NewService(balance.Options{
		Solana:     solanaRPC,
		Ethereum:   ethClient,
		Tokens:     registry,
		Commitment: commitment,
		ChainID:    cfg.Ethereum.ChainID,
	}, logger)

	solanaBackend := swap.NewSolanaBackend(
		client.NewJupiterClient(cfg.Jupiter.BaseURL, httpClient),
		client.NewSwapTokensClient(cfg.GraphQL.Endpoint, httpClient),
		solanaRPC,
		swap.SolanaConfig{
			SlippageBps:   cfg.Jupiter.SlippageBps,
			Commitment:    commitment,
			SkipPreflight: cfg.Solana.SkipPreflight,
			Signer:        solanaSigner,
		},
		logger,
	)

	ethereumBackend := swap.NewEthereumBackend(
		client.NewZeroXClient(cfg.ZeroX.BaseURL, cfg.ZeroX.APIKey, httpClient),
		ethClient,
		registry,
		swap.EthereumConfig{
			ChainID:            cfg.Ethereum.ChainID,
			SlippagePercentage: cfg.ZeroX.Slippage,
			Signer:             ethSigner,
		},
		logger,
	)

	store, err := history.NewStorage(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		balances:  balances,
		router:    swap.NewRouter(solanaBackend, ethereumBackend),
		history:   store,
		oneClick:  oneClick,
		solanaRPC: solanaRPC,
		ethClient: ethClient,
		wallets:   wallets,
	}, nil
}

// Close releases the Ethereum connection. The Solana RPC client needs no cleanup.
func (a *app) Close() {
	a.ethClient.Close()
}

func parseSolanaKey(encoded string) (*solana.PrivateKey, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid solana private key: %w", err)
	}
	return &key, nil
}

func parseEthereumKey(encoded string) (*ecdsa.PrivateKey, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid ethereum private key: %w", err)
	}
	return key, nil
}

// walletAddresses resolves the wallet of each chain from config or the signing key
func walletAddresses(cfg *config.Config, solanaSigner *solana.PrivateKey, ethSigner *ecdsa.PrivateKey) (map[types.Blockchain]string, error) {
	wallets := make(map[types.Blockchain]string, 2)

	solanaWallet := cfg.Solana.WalletAddress
	if solanaSigner != nil {
		derived := solanaSigner.PublicKey().String()
		if solanaWallet != "" && solanaWallet != derived {
			return nil, fmt.Errorf("solana.wallet_address %s does not match the configured private key", solanaWallet)
		}
		solanaWallet = derived
	}
	if solanaWallet != "" {
		wallets[types.BlockchainSolana] = solanaWallet
	}

	ethWallet := cfg.Ethereum.WalletAddress
	if ethSigner != nil {
		derived := crypto.PubkeyToAddress(ethSigner.PublicKey).Hex()
		if ethWallet != "" && !strings.EqualFold(ethWallet, derived) {
			return nil, fmt.Errorf("ethereum.wallet_address %s does not match the configured private key", ethWallet)
		}
		ethWallet = derived
	}
	if ethWallet != "" {
		wallets[types.BlockchainEthereum] = ethWallet
	}

	return wallets, nil
}

// wallet returns the configured wallet for a chain
func (a *app) wallet(chain types.Blockchain) (string, error) {
	wallet, ok := a.wallets[chain]
	if !ok {
		return "", fmt.Errorf("no wallet configured for %s. Set %s_%s_WALLET_ADDRESS or a private key", chain, config.EnvPrefix, strings.ToUpper(string(chain)))
	}
	return wallet, nil
}

// lookupToken finds a token by symbol on a chain. Ethereum lookups are limited
// to the configured chain id and include native ETH. Symbols missing from the
// registry are looked up on 1Click directly.
func (a *app) lookupToken(ctx context.Context, chain types.Blockchain, symbol string) (types.TokenListEntry, error) {
	symbol = parser.NormalizeTokenSymbol(symbol)

	entry, err := a.registryToken(ctx, chain, symbol)
	if err == nil || a.oneClick == nil {
		return entry, err
	}

	remote, remoteErr := a.oneClick.FindTokenOnChain(ctx, symbol, chain)
	if remoteErr != nil {
		a.logger.WithError(remoteErr).WithField("token", symbol).Debug("1Click token lookup failed")
		return types.TokenListEntry{}, err
	}
	if chain == types.BlockchainEthereum && remote.ChainID != a.cfg.Ethereum.ChainID {
		return types.TokenListEntry{}, err
	}
	return *remote, nil
}

func (a *app) registryToken(ctx context.Context, chain types.Blockchain, symbol string) (types.TokenListEntry, error) {
	if chain != types.BlockchainEthereum {
		return a.registry.FindBySymbol(ctx, chain, symbol)
	}

	chainID := a.cfg.Ethereum.ChainID
	if symbol == "ETH" {
		return balance.NativeETHEntry(chainID), nil
	}
	for _, entry := range a.registry.EVMTokens(ctx, chainID) {
		if strings.EqualFold(entry.Symbol, symbol) {
			return entry, nil
		}
	}
	return types.TokenListEntry{}, fmt.Errorf("token '%s' not found on ethereum chain %d", symbol, chainID)
}

// swapSide is one resolved token of a swap with the wallet's balance of it
type swapSide struct {
	Asset   types.Asset
	Balance types.TokenBalance
}

// pair is a fully resolved swap request
type pair struct {
	From       swapSide
	To         swapSide
	FromAmount *big.Int
}

// resolvePair turns a parsed command into assets. Without a chain the source
// token decides it; a destination only known on the other chain makes a
// cross-chain pair, which the router rejects.
func (a *app) resolvePair(ctx context.Context, command *parser.SwapCommand) (*pair, error) {
	chains := []types.Blockchain{types.BlockchainSolana, types.BlockchainEthereum}
	if command.Chain != "" {
		chains = []types.Blockchain{command.Chain}
	}

	var (
		fromEntry types.TokenListEntry
		fromChain types.Blockchain
		err       error
	)
	for _, chain := range chains {
		fromEntry, err = a.lookupToken(ctx, chain, command.SourceToken)
		if err == nil {
			fromChain = chain
			break
		}
	}
	if fromChain == "" {
		return nil, fmt.Errorf("source token %s not found: %w", command.SourceToken, err)
	}

	toEntry, err := a.lookupToken(ctx, fromChain, command.DestToken)
	if err != nil && command.Chain == "" {
		for _, chain := range []types.Blockchain{types.BlockchainSolana, types.BlockchainEthereum} {
			if chain == fromChain {
				continue
			}
			if entry, lookupErr := a.lookupToken(ctx, chain, command.DestToken); lookupErr == nil {
				toEntry, err = entry, nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("destination token %s not found: %w", command.DestToken, err)
	}

	amount, err := unitsFor(command.Amount, fromEntry)
	if err != nil {
		return nil, err
	}

	from, err := a.side(ctx, fromEntry)
	if err != nil {
		return nil, err
	}
	to, err := a.side(ctx, toEntry)
	if err != nil {
		return nil, err
	}

	return &pair{From: *from, To: *to, FromAmount: amount}, nil
}

// side builds the asset for a token and loads the wallet balance of it.
// A failed balance lookup is logged and reported as zero.
func (a *app) side(ctx context.Context, entry types.TokenListEntry) (*swapSide, error) {
	wallet, err := a.wallet(entry.Blockchain)
	if err != nil {
		return nil, err
	}

	asset := types.Asset{
		WalletPublicKey: wallet,
		Mint:            entry.Address,
		Blockchain:      entry.Blockchain,
	}

	amount, err := a.balances.Balance(ctx, asset)
	if err != nil {
		a.logger.WithError(err).WithField("token", entry.Symbol).Warn("failed to load balance")
		amount = big.NewInt(0)
	}

	return &swapSide{Asset: asset, Balance: balance.NewTokenBalance(entry, amount)}, nil
}
