package client

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func TestJupiterClient_GetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/quote", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "inMint", q.Get("inputMint"))
		assert.Equal(t, "outMint", q.Get("outputMint"))
		assert.Equal(t, "1000", q.Get("amount"))
		assert.Equal(t, "100", q.Get("slippageBps"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"inputMint":      "inMint",
			"inAmount":       "1000",
			"outputMint":     "outMint",
			"outAmount":      "2500",
			"slippageBps":    100,
			"priceImpactPct": "0.12",
			"platformFee":    map[string]interface{}{"amount": "5", "feeBps": 85},
		})
	}))
	defer server.Close()

	client := NewJupiterClient(server.URL+"/", server.Client())

	quote, err := client.GetQuote(context.Background(), QuoteParams{
		InputMint:  "inMint",
		OutputMint: "outMint",
		Amount:     big.NewInt(1000),
	})
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.Equal(t, "2500", quote.OutAmount)
	assert.Equal(t, "0.12", quote.PriceImpactPct)
	require.NotNil(t, quote.PlatformFee)
	assert.Equal(t, 85, quote.PlatformFee.FeeBps)
}

func TestJupiterClient_GetQuote_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"no route"}`))
	}))
	defer server.Close()

	client := NewJupiterClient(server.URL+"/", server.Client())

	_, err := client.GetQuote(context.Background(), QuoteParams{
		InputMint:  "a",
		OutputMint: "b",
		Amount:     big.NewInt(1),
	})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "no route")
}

func TestJupiterClient_GetSwapTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			QuoteResponse    types.JupiterQuote `json:"quoteResponse"`
			WrapAndUnwrapSol bool               `json:"wrapAndUnwrapSol"`
			UserPublicKey    string             `json:"userPublicKey"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.WrapAndUnwrapSol)
		assert.Equal(t, "wallet", body.UserPublicKey)
		assert.Equal(t, "42", body.QuoteResponse.OutAmount)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"swapTransaction":      "AQID",
			"lastValidBlockHeight": 10,
		})
	}))
	defer server.Close()

	client := NewJupiterClient(server.URL+"/", server.Client())

	tx, err := client.GetSwapTransaction(context.Background(), &types.JupiterQuote{OutAmount: "42"}, "wallet")
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)
}

func TestJupiterClient_GetSwapTransaction_NilQuote(t *testing.T) {
	client := NewJupiterClient("http://127.0.0.1:0/", nil)

	_, err := client.GetSwapTransaction(context.Background(), nil, "wallet")
	require.Error(t, err)
}
