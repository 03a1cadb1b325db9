package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func TestSwapTokensClient_ValidInputTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "jupiterSwapValidInputTokens")
		assert.Len(t, req.Variables["tokens"], 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"jupiterSwapValidInputTokens":["mintA"]}}`))
	}))
	defer server.Close()

	client := NewSwapTokensClient(server.URL, server.Client())

	mints, err := client.ValidInputTokens(context.Background(), []string{"mintA", "mintB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mintA"}, mints)
}

func TestSwapTokensClient_OutputTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "jupiterSwapOutputTokens")
		assert.Equal(t, "inMint", req.Variables["inputToken"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"jupiterSwapOutputTokens":[
			{"address":"outMint","name":"USD Coin","symbol":"USDC","decimals":6,"logo":"https://logo","chainId":101}
		]}}`))
	}))
	defer server.Close()

	client := NewSwapTokensClient(server.URL, server.Client())

	tokens, err := client.OutputTokens(context.Background(), "inMint")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "USDC", tokens[0].Symbol)
	assert.Equal(t, 6, tokens[0].Decimals)
	assert.Equal(t, int64(101), tokens[0].ChainID)
}

func TestSwapTokensClient_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
	}))
	defer server.Close()

	client := NewSwapTokensClient(server.URL, server.Client())

	_, err := client.ValidInputTokens(context.Background(), []string{"mintA"})
	require.Error(t, err)
}
