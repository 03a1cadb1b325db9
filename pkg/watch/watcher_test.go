package watch

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

type fakeQuoter struct {
	mu      sync.Mutex
	amounts []int64
	// blockOn makes fetches for this amount wait for cancellation
	blockOn int64
	started chan int64
}

func newFakeQuoter() *fakeQuoter {
	return &fakeQuoter{started: make(chan int64, 16)}
}

func (f *fakeQuoter) FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) (*types.Quote, error) {
	f.mu.Lock()
	f.amounts = append(f.amounts, fromAmount.Int64())
	f.mu.Unlock()

	select {
	case f.started <- fromAmount.Int64():
	default:
	}

	if f.blockOn != 0 && fromAmount.Int64() == f.blockOn {
		<-ctx.Done()
		return nil, nil
	}

	return &types.Quote{
		Kind:    types.QuoteKindJupiter,
		Jupiter: &types.JupiterQuote{InAmount: fromAmount.String(), OutAmount: fromAmount.String()},
	}, nil
}

func (f *fakeQuoter) calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.amounts...)
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func params(amount int64) Params {
	to := types.Asset{WalletPublicKey: "w", Mint: "out", Blockchain: types.BlockchainSolana}
	return Params{
		From:       types.Asset{WalletPublicKey: "w", Mint: "in", Blockchain: types.BlockchainSolana},
		To:         &to,
		FromAmount: big.NewInt(amount),
	}
}

func next(t *testing.T, w *Watcher) Result {
	t.Helper()
	select {
	case r, ok := <-w.Updates():
		require.True(t, ok, "updates channel closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
		return Result{}
	}
}

func TestWatcher_Debounces(t *testing.T) {
	quoter := newFakeQuoter()
	w := NewWatcher(quoter, Options{Debounce: 50 * time.Millisecond, PollInterval: time.Hour}, quietLogger())
	defer w.Close()

	w.Update(params(1))
	w.Update(params(2))
	gen := w.Update(params(3))

	r := next(t, w)
	assert.Equal(t, gen, r.Generation)
	require.NotNil(t, r.Quote)
	assert.Equal(t, "3", r.Quote.OutAmount().String())
	assert.False(t, r.QuoteFailed)
	assert.Equal(t, []int64{3}, quoter.calls())
}

func TestWatcher_ZeroAmountClearsQuote(t *testing.T) {
	quoter := newFakeQuoter()
	w := NewWatcher(quoter, Options{Debounce: 10 * time.Millisecond}, quietLogger())
	defer w.Close()

	w.Update(params(0))

	r := next(t, w)
	assert.Nil(t, r.Quote)
	assert.False(t, r.QuoteFailed)
	assert.Empty(t, quoter.calls())
}

func TestWatcher_SameTokenClearsQuote(t *testing.T) {
	quoter := newFakeQuoter()
	w := NewWatcher(quoter, Options{Debounce: 10 * time.Millisecond}, quietLogger())
	defer w.Close()

	p := params(5)
	p.To.Mint = p.From.Mint
	w.Update(p)

	r := next(t, w)
	assert.Nil(t, r.Quote)
	assert.Empty(t, quoter.calls())
}

func TestWatcher_DropsStaleQuote(t *testing.T) {
	quoter := newFakeQuoter()
	quoter.blockOn = 1
	w := NewWatcher(quoter, Options{Debounce: 10 * time.Millisecond, PollInterval: time.Hour}, quietLogger())
	defer w.Close()

	w.Update(params(1))
	select {
	case amount := <-quoter.started:
		require.Equal(t, int64(1), amount)
	case <-time.After(2 * time.Second):
		t.Fatal("first fetch never started")
	}

	// The first fetch is still in flight when the input changes
	gen := w.Update(params(2))

	r := next(t, w)
	assert.Equal(t, gen, r.Generation)
	require.NotNil(t, r.Quote)
	assert.Equal(t, "2", r.Quote.OutAmount().String())

	select {
	case extra := <-w.Updates():
		t.Fatalf("unexpected result: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_Polls(t *testing.T) {
	quoter := newFakeQuoter()
	w := NewWatcher(quoter, Options{Debounce: 5 * time.Millisecond, PollInterval: 20 * time.Millisecond}, quietLogger())
	defer w.Close()

	gen := w.Update(params(7))

	first := next(t, w)
	second := next(t, w)
	assert.Equal(t, gen, first.Generation)
	assert.Equal(t, gen, second.Generation)
	assert.GreaterOrEqual(t, len(quoter.calls()), 2)
}

func TestWatcher_Close(t *testing.T) {
	quoter := newFakeQuoter()
	w := NewWatcher(quoter, Options{Debounce: 10 * time.Millisecond}, quietLogger())

	w.Update(params(1))
	w.Close()
	w.Close()

	_, ok := <-w.Updates()
	assert.False(t, ok)

	w.Update(params(2))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, quoter.calls())
}
