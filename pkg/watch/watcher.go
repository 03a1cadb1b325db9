package watch

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wallet-swap/pkg/metrics"
	"wallet-swap/pkg/types"
)

const (
	// DefaultDebounce is how long input must be stable before a quote is fetched
	DefaultDebounce = 400 * time.Millisecond
	// DefaultPollInterval is how often a standing quote is refreshed
	DefaultPollInterval = 30 * time.Second
)

// Quoter fetches quotes. A nil quote with a nil error means no route was found.
type Quoter interface {
	FetchQuote(ctx context.Context, from types.Asset, to *types.Asset, fromAmount *big.Int) (*types.Quote, error)
}

// Params is the swap input being watched
type Params struct {
	From       types.Asset
	To         *types.Asset
	FromAmount *big.Int
}

// quotable reports whether the input asks for a quote at all
func (p Params) quotable() bool {
	if p.FromAmount == nil || p.FromAmount.Sign() <= 0 || p.To == nil {
		return false
	}
	return p.From.Mint != p.To.Mint || p.From.Blockchain != p.To.Blockchain
}

// Result is one quote delivered for a generation of input
type Result struct {
	Generation uint64
	Params     Params
	Quote      *types.Quote
	Err        error
	// QuoteFailed is set when a quote was requested but none came back
	QuoteFailed bool
	FetchedAt   time.Time
}

// Options configure a Watcher
type Options struct {
	Debounce     time.Duration
	PollInterval time.Duration
}

// Watcher keeps a quote fresh for changing swap input. Each Update starts a new
// generation; results of older generations are dropped.
type Watcher struct {
	quoter       Quoter
	debounce     time.Duration
	pollInterval time.Duration
	logger       logrus.FieldLogger

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	gen      uint64
	params   Params
	timer    *time.Timer
	inflight context.CancelFunc
	closed   bool
	updates  chan Result
}

// NewWatcher creates a watcher. It does nothing until the first Update.
func NewWatcher(quoter Quoter, opts Options, logger logrus.FieldLogger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Watcher{
		quoter:       quoter,
		debounce:     opts.Debounce,
		pollInterval: opts.PollInterval,
		logger:       logger,
		ctx:          ctx,
		stop:         stop,
		updates:      make(chan Result, 1),
	}
}

// Updates delivers quote results. Only the latest undelivered result is kept.
// The channel is closed by Close.
func (w *Watcher) Updates() <-chan Result {
	return w.updates
}

// Update replaces the watched input. A pending or in-flight fetch for the
// previous input is abandoned.
func (w *Watcher) Update(params Params) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.gen
	}

	w.gen++
	w.params = params
	w.resetLocked()

	gen := w.gen
	if !params.quotable() {
		w.publishLocked(Result{Generation: gen, Params: params, FetchedAt: time.Now()})
		return gen
	}

	w.timer = time.AfterFunc(w.debounce, func() { w.fetch(gen) })
	return gen
}

// resetLocked stops the pending timer and cancels the in-flight fetch
func (w *Watcher) resetLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.inflight != nil {
		w.inflight()
		w.inflight = nil
	}
}

func (w *Watcher) fetch(gen uint64) {
	w.mu.Lock()
	if w.closed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(w.ctx)
	w.inflight = cancel
	params := w.params
	w.mu.Unlock()

	defer cancel()

	quote, err := w.quoter.FetchQuote(ctx, params.From, params.To, params.FromAmount)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || gen != w.gen {
		metrics.IncStaleQuote()
		w.logger.WithField("generation", gen).Debug("dropping stale quote")
		return
	}
	w.inflight = nil

	if err != nil {
		w.logger.WithError(err).Warn("failed to fetch quote")
	}

	w.publishLocked(Result{
		Generation:  gen,
		Params:      params,
		Quote:       quote,
		Err:         err,
		QuoteFailed: quote == nil,
		FetchedAt:   time.Now(),
	})

	if err == nil {
		w.timer = time.AfterFunc(w.pollInterval, func() { w.fetch(gen) })
	}
}

// publishLocked delivers a result, replacing one the consumer has not read yet
func (w *Watcher) publishLocked(result Result) {
	select {
	case w.updates <- result:
		return
	default:
	}

	select {
	case <-w.updates:
	default:
	}
	w.updates <- result
}

// Close stops the watcher and closes the updates channel
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.resetLocked()
	w.stop()
	close(w.updates)
}
