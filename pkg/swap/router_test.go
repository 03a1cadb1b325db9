package swap

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/route"
	"wallet-swap/pkg/types"
)

type recordingBackend struct {
	name  string
	calls []string
	quote *types.Quote
}

func (b *recordingBackend) FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) *types.Quote {
	b.calls = append(b.calls, "FetchQuote")
	return b.quote
}

func (b *recordingBackend) FetchTransaction(ctx context.Context, from types.Asset, quote *types.Quote) (string, error) {
	b.calls = append(b.calls, "FetchTransaction")
	return b.name + "-tx", nil
}

func (b *recordingBackend) EstimateFees(ctx context.Context, to *types.Asset, quote *types.Quote, transaction string) types.TransactionFees {
	b.calls = append(b.calls, "EstimateFees")
	return newFees(map[string]*big.Int{"fee": big.NewInt(7)})
}

func (b *recordingBackend) SendTransaction(ctx context.Context, req SendRequest) (string, error) {
	b.calls = append(b.calls, "SendTransaction")
	return b.name + "-sig", nil
}

func (b *recordingBackend) AvailableForSwapOffset(from types.Asset, available *big.Int) *big.Int {
	b.calls = append(b.calls, "AvailableForSwapOffset")
	return available
}

func (b *recordingBackend) ValidInputTokens(ctx context.Context, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	b.calls = append(b.calls, "ValidInputTokens")
	return balances, nil
}

func (b *recordingBackend) OutputTokens(ctx context.Context, inputMint string, balances []types.TokenBalance) ([]types.TokenBalance, error) {
	b.calls = append(b.calls, "OutputTokens:"+inputMint)
	return balances, nil
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func solAsset(mint string) types.Asset {
	return types.Asset{WalletPublicKey: "wallet", Mint: mint, Blockchain: types.BlockchainSolana}
}

func ethAsset(mint string) types.Asset {
	return types.Asset{WalletPublicKey: "0xwallet", Mint: mint, Blockchain: types.BlockchainEthereum}
}

func TestRouter_DispatchesByChain(t *testing.T) {
	sol := &recordingBackend{name: "sol", quote: &types.Quote{Kind: types.QuoteKindJupiter}}
	eth := &recordingBackend{name: "eth", quote: &types.Quote{Kind: types.QuoteKindZeroX}}
	router := NewRouter(sol, eth)

	ctx := context.Background()
	to := solAsset("out")

	quote, err := router.FetchQuote(ctx, solAsset("in"), &to, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, types.QuoteKindJupiter, quote.Kind)

	tx, err := router.FetchTransaction(ctx, solAsset("in"), &to, quote)
	require.NoError(t, err)
	assert.Equal(t, "sol-tx", tx)

	ethTo := ethAsset("0xout")
	quote, err = router.FetchQuote(ctx, ethAsset("0xin"), &ethTo, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, types.QuoteKindZeroX, quote.Kind)

	_, err = router.OutputTokens(ctx, ethAsset("0xin"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"FetchQuote", "FetchTransaction"}, sol.calls)
	assert.Equal(t, []string{"FetchQuote", "OutputTokens:0xin"}, eth.calls)
}

func TestRouter_CrossChainFailsBeforeIO(t *testing.T) {
	sol := &recordingBackend{name: "sol"}
	eth := &recordingBackend{name: "eth"}
	router := NewRouter(sol, eth)

	ctx := context.Background()
	from := solAsset("in")
	to := ethAsset("0xout")
	quote := &types.Quote{Kind: types.QuoteKindJupiter}

	_, err := router.FetchQuote(ctx, from, &to, big.NewInt(1))
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	_, err = router.FetchTransaction(ctx, from, &to, quote)
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	_, err = router.EstimateFees(ctx, from, &to, quote, "")
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	_, err = router.AvailableForSwap(from, &to, big.NewInt(1))
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	_, err = router.ValidInputTokens(ctx, from, &to, nil)
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	_, err = router.OutputTokens(ctx, from, &to, nil)
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	_, err = router.SendTransaction(ctx, SendRequest{
		From:      from,
		To:        &to,
		FromToken: &types.TokenBalance{},
		ToToken:   &types.TokenBalance{},
		Quote:     quote,
	})
	assert.ErrorIs(t, err, route.ErrBridgeNotImplemented)

	assert.Empty(t, sol.calls)
	assert.Empty(t, eth.calls)
}

func TestRouter_UnsupportedChain(t *testing.T) {
	router := NewRouter(&recordingBackend{}, nil)

	_, err := router.FetchQuote(context.Background(), types.Asset{Blockchain: "bitcoin"}, nil, big.NewInt(1))
	assert.ErrorIs(t, err, route.ErrUnsupportedBlockchain)

	// No ethereum backend configured
	_, err = router.FetchQuote(context.Background(), ethAsset("0xin"), nil, big.NewInt(1))
	assert.ErrorIs(t, err, route.ErrUnsupportedBlockchain)
}

func TestRouter_MissingInputs(t *testing.T) {
	sol := &recordingBackend{name: "sol"}
	router := NewRouter(sol, nil)

	to := solAsset("out")

	_, err := router.FetchTransaction(context.Background(), solAsset("in"), &to, nil)
	assert.ErrorIs(t, err, ErrQuoteNotFound)

	_, err = router.SendTransaction(context.Background(), SendRequest{From: solAsset("in"), To: &to})
	assert.ErrorIs(t, err, ErrTokensNotLoaded)

	assert.Empty(t, sol.calls)
}

func TestRouter_EstimateFees(t *testing.T) {
	router := NewRouter(&recordingBackend{}, nil)

	fees, err := router.EstimateFees(context.Background(), solAsset("in"), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "7", fees.Total.String())
}
