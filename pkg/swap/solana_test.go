package swap

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/client"
	"wallet-swap/pkg/types"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type fakeJupiter struct {
	params client.QuoteParams
	quote  *types.JupiterQuote
	err    error
}

func (f *fakeJupiter) GetQuote(ctx context.Context, params client.QuoteParams) (*types.JupiterQuote, error) {
	f.params = params
	return f.quote, f.err
}

func (f *fakeJupiter) GetSwapTransaction(ctx context.Context, quote *types.JupiterQuote, userPublicKey string) (string, error) {
	return "tx-for-" + userPublicKey, nil
}

type fakeSwapTokens struct {
	validQuery  []string
	valid       []string
	outputQuery string
	outputs     []client.OutputToken
}

func (f *fakeSwapTokens) ValidInputTokens(ctx context.Context, tokens []string) ([]string, error) {
	f.validQuery = tokens
	return f.valid, nil
}

func (f *fakeSwapTokens) OutputTokens(ctx context.Context, inputToken string) ([]client.OutputToken, error) {
	f.outputQuery = inputToken
	return f.outputs, nil
}

type fakeSolanaRPC struct {
	fee      *uint64
	feeErr   error
	balances map[solana.PublicKey]uint64
	sent     *solana.Transaction
	sendErr  error
}

func (f *fakeSolanaRPC) GetFeeForMessage(ctx context.Context, message string, commitment rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error) {
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return &rpc.GetFeeForMessageResult{Value: f.fee}, nil
}

func (f *fakeSolanaRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.balances[account]}, nil
}

func (f *fakeSolanaRPC) SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = transaction
	return transaction.Signatures[0], nil
}

// unsignedSwapTx builds a base64 transaction with an empty signature slot, the
// way the aggregator returns it
func unsignedSwapTx(t *testing.T, payer solana.PublicKey) string {
	t.Helper()

	ix := system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSolanaBackend_FetchQuote_MapsNativeSOL(t *testing.T) {
	jupiter := &fakeJupiter{quote: &types.JupiterQuote{OutAmount: "5"}}
	backend := NewSolanaBackend(jupiter, &fakeSwapTokens{}, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

	to := solAsset(types.SolNativeMint)
	quote := backend.FetchQuote(context.Background(), solAsset(usdcMint), &to, big.NewInt(100))
	require.NotNil(t, quote)
	assert.Equal(t, types.QuoteKindJupiter, quote.Kind)
	assert.Equal(t, "5", quote.OutAmount().String())

	assert.Equal(t, usdcMint, jupiter.params.InputMint)
	assert.Equal(t, types.WSOLMint, jupiter.params.OutputMint)
	assert.Equal(t, client.DefaultSlippageBps, jupiter.params.SlippageBps)
}

func TestSolanaBackend_FetchQuote_FailureIsNil(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	jupiter := client.NewJupiterClient(server.URL+"/", server.Client())
	backend := NewSolanaBackend(jupiter, &fakeSwapTokens{}, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

	to := solAsset(usdcMint)
	quote := backend.FetchQuote(context.Background(), solAsset(types.SolNativeMint), &to, big.NewInt(100))
	assert.Nil(t, quote)
	assert.Equal(t, 1, requests, "quote failures are not retried")
}

func TestSolanaBackend_EstimateFees(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	usdcATA, _, err := solana.FindAssociatedTokenAddress(owner, solana.MustPublicKeyFromBase58(usdcMint))
	require.NoError(t, err)

	quote := &types.Quote{Kind: types.QuoteKindJupiter, Jupiter: &types.JupiterQuote{}}
	fee := uint64(10_000)

	t.Run("new token account and no transaction yet", func(t *testing.T) {
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())
		to := types.Asset{WalletPublicKey: owner.String(), Mint: usdcMint, Blockchain: types.BlockchainSolana}

		fees := backend.EstimateFees(context.Background(), &to, nil, "")
		assert.Equal(t, int64(DefaultSolanaNetworkFee), fees.Fees[FeeSolanaNetwork].Int64())
		assert.Equal(t, int64(TokenAccountRentExemptionLamports), fees.Fees[FeeOneTimeTokenAccount].Int64())
		assert.Equal(t, int64(DefaultSolanaNetworkFee+TokenAccountRentExemptionLamports), fees.Total.Int64())
	})

	t.Run("existing token account with queried fee", func(t *testing.T) {
		rpcClient := &fakeSolanaRPC{fee: &fee, balances: map[solana.PublicKey]uint64{usdcATA: 2_039_280}}
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, rpcClient, SolanaConfig{}, quietLogger())
		to := types.Asset{WalletPublicKey: owner.String(), Mint: usdcMint, Blockchain: types.BlockchainSolana}

		fees := backend.EstimateFees(context.Background(), &to, quote, unsignedSwapTx(t, owner))
		assert.Equal(t, int64(10_000), fees.Fees[FeeSolanaNetwork].Int64())
		assert.NotContains(t, fees.Fees, FeeOneTimeTokenAccount)
		assert.Equal(t, int64(10_000), fees.Total.Int64())
	})

	t.Run("fee query failure uses default", func(t *testing.T) {
		rpcClient := &fakeSolanaRPC{feeErr: errors.New("rpc down")}
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, rpcClient, SolanaConfig{}, quietLogger())
		to := types.Asset{WalletPublicKey: owner.String(), Mint: types.SolNativeMint, Blockchain: types.BlockchainSolana}

		fees := backend.EstimateFees(context.Background(), &to, quote, unsignedSwapTx(t, owner))
		assert.Equal(t, int64(DefaultSolanaNetworkFee), fees.Total.Int64())
	})

	t.Run("undecodable transaction uses default", func(t *testing.T) {
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, &fakeSolanaRPC{fee: &fee}, SolanaConfig{}, quietLogger())
		to := types.Asset{WalletPublicKey: owner.String(), Mint: types.WSOLMint, Blockchain: types.BlockchainSolana}

		fees := backend.EstimateFees(context.Background(), &to, quote, "not base64!")
		assert.Equal(t, int64(DefaultSolanaNetworkFee), fees.Total.Int64())
	})

	t.Run("missing destination zeroes everything", func(t *testing.T) {
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

		fees := backend.EstimateFees(context.Background(), nil, nil, "")
		assert.Equal(t, int64(0), fees.Total.Int64())
		assert.Equal(t, int64(0), fees.Fees[FeeSolanaNetwork].Int64())
	})
}

func TestSolanaBackend_AvailableForSwapOffset(t *testing.T) {
	backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

	tests := []struct {
		name      string
		mint      string
		available *big.Int
		want      int64
	}{
		{"native SOL keeps rent", types.SolNativeMint, big.NewInt(10_000_000), 10_000_000 - 2_039_280 - 890_880},
		{"native SOL below rent clamps to zero", types.SolNativeMint, big.NewInt(1_000_000), 0},
		{"native SOL exactly rent", types.SolNativeMint, big.NewInt(2_930_160), 0},
		{"SPL token unchanged", usdcMint, big.NewInt(1_000), 1_000},
		{"nil balance", types.SolNativeMint, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backend.AvailableForSwapOffset(solAsset(tt.mint), tt.available)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestSolanaBackend_ValidInputTokens(t *testing.T) {
	tokens := &fakeSwapTokens{valid: []string{usdcMint}}
	backend := NewSolanaBackend(&fakeJupiter{}, tokens, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

	balances := []types.TokenBalance{
		{Token: types.SolNativeMint},
		{Token: usdcMint},
		{Token: "unroutable"},
	}

	valid, err := backend.ValidInputTokens(context.Background(), balances)
	require.NoError(t, err)
	require.Len(t, valid, 2)
	assert.Equal(t, types.SolNativeMint, valid[0].Token)
	assert.Equal(t, usdcMint, valid[1].Token)
	assert.Equal(t, []string{types.SolNativeMint, usdcMint, "unroutable"}, tokens.validQuery)
}

func TestSolanaBackend_OutputTokens(t *testing.T) {
	tokens := &fakeSwapTokens{outputs: []client.OutputToken{
		{Address: types.WSOLMint, Name: "Wrapped SOL", Symbol: "SOL", Decimals: 9},
		{Address: usdcMint, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
	}}
	backend := NewSolanaBackend(&fakeJupiter{}, tokens, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

	balances := []types.TokenBalance{
		{ID: "sol", Token: types.SolNativeMint, Amount: big.NewInt(42), DisplayAmount: "0.000000042"},
	}

	outputs, err := backend.OutputTokens(context.Background(), types.SolNativeMint, balances)
	require.NoError(t, err)
	assert.Equal(t, types.WSOLMint, tokens.outputQuery)

	require.Len(t, outputs, 2)
	assert.Equal(t, "Solana", outputs[0].TokenListEntry.Name)
	assert.Equal(t, "sol", outputs[0].ID)
	assert.Equal(t, int64(42), outputs[0].Amount.Int64())

	assert.Equal(t, "USD Coin", outputs[1].TokenListEntry.Name)
	assert.Equal(t, "0", outputs[1].DisplayAmount)
	assert.Equal(t, int64(0), outputs[1].Amount.Int64())
}

func TestSolanaBackend_SendTransaction(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	owner := signer.PublicKey()
	fee := uint64(5000)

	quote := &types.Quote{Kind: types.QuoteKindJupiter, Jupiter: &types.JupiterQuote{
		InAmount:       "1000000000",
		OutAmount:      "150250000",
		PriceImpactPct: "0.12",
		PlatformFee:    &types.PlatformFee{Amount: "10", FeeBps: 85},
	}}
	to := types.Asset{WalletPublicKey: owner.String(), Mint: types.WSOLMint, Blockchain: types.BlockchainSolana}

	newRequest := func() SendRequest {
		return SendRequest{
			From:        types.Asset{WalletPublicKey: owner.String(), Mint: types.SolNativeMint, Blockchain: types.BlockchainSolana},
			To:          &to,
			FromAmount:  big.NewInt(1_000_000_000),
			FromToken:   &types.TokenBalance{Token: types.SolNativeMint, TokenListEntry: &types.TokenListEntry{Decimals: 9}},
			ToToken:     &types.TokenBalance{Token: usdcMint, TokenListEntry: &types.TokenListEntry{Decimals: 6}},
			Quote:       quote,
			Transaction: unsignedSwapTx(t, owner),
		}
	}

	t.Run("signs and sends", func(t *testing.T) {
		rpcClient := &fakeSolanaRPC{fee: &fee}
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, rpcClient, SolanaConfig{Signer: &signer}, quietLogger())

		var summary Summary
		req := newRequest()
		req.Approve = func(s Summary) bool {
			summary = s
			return true
		}

		sig, err := backend.SendTransaction(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, rpcClient.sent)
		require.Len(t, rpcClient.sent.Signatures, 1)
		assert.Equal(t, rpcClient.sent.Signatures[0].String(), sig)
		assert.NoError(t, rpcClient.sent.VerifySignatures())

		assert.Equal(t, "150.25", summary.Rate)
		assert.Equal(t, "0.12", summary.PriceImpact)
		assert.Equal(t, 0.85, summary.FeePercent)
		assert.Equal(t, "150250000", summary.ToAmount)
		assert.Equal(t, int64(5000), summary.Fees.Total.Int64())
	})

	t.Run("rejected by approval", func(t *testing.T) {
		rpcClient := &fakeSolanaRPC{fee: &fee}
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, rpcClient, SolanaConfig{Signer: &signer}, quietLogger())

		req := newRequest()
		req.Approve = func(Summary) bool { return false }

		_, err := backend.SendTransaction(context.Background(), req)
		assert.ErrorIs(t, err, ErrSwapRejected)
		assert.Nil(t, rpcClient.sent)
	})

	t.Run("send failure propagates", func(t *testing.T) {
		rpcClient := &fakeSolanaRPC{fee: &fee, sendErr: errors.New("blockhash not found")}
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, rpcClient, SolanaConfig{Signer: &signer}, quietLogger())

		_, err := backend.SendTransaction(context.Background(), newRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blockhash not found")
	})

	t.Run("no signer", func(t *testing.T) {
		backend := NewSolanaBackend(&fakeJupiter{}, &fakeSwapTokens{}, &fakeSolanaRPC{}, SolanaConfig{}, quietLogger())

		_, err := backend.SendTransaction(context.Background(), newRequest())
		assert.ErrorIs(t, err, ErrSignerNotConfigured)
	})
}
