package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/units"
	"wallet-swap/pkg/watch"
)

var (
	watchChain       string
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch <amount> <source-token> to <dest-token>",
	Short: "Keep a swap quote fresh while you change the amount",
	Long: `Stream quotes for a token pair. The quote is refreshed every poll interval,
and typing a new amount on stdin requotes it after a short debounce. Quotes
for an amount you have already replaced are never shown.

Enter 0 to clear the quote and q to quit.

Examples:
  wallet-swap watch 1 SOL to USDC
  wallet-swap watch 1 ETH to DAI --chain ethereum --metrics-addr :9100`,
	Args: cobra.MinimumNArgs(1),
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchChain, "chain", "", "Blockchain to swap on (solana or ethereum)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	command, err := parseCommand(args, watchChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a := mustApp(cmd)
	defer a.Close()

	p, err := a.resolvePair(context.Background(), command)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	metricsAddr := watchMetricsAddr
	if metricsAddr == "" {
		metricsAddr = a.cfg.MetricsAddr
	}
	if metricsAddr != "" {
		server := startMetricsServer(a, metricsAddr)
		defer server.Close()
	}

	watcher := watch.NewWatcher(a.router, watch.Options{
		Debounce:     a.cfg.Watch.Debounce,
		PollInterval: a.cfg.Watch.PollInterval,
	}, a.logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range watcher.Updates() {
			displayWatchResult(p, result, jsonOutput)
		}
	}()

	if !jsonOutput {
		fmt.Println("\n" + strings.Repeat("=", 70))
		color.Green("                        QUOTE WATCHER")
		fmt.Println(strings.Repeat("=", 70))
		fmt.Printf("\n  Pair:     %s -> %s on %s\n", command.SourceToken, command.DestToken, p.From.Asset.Blockchain)
		fmt.Printf("  Refresh:  every %s\n", a.cfg.Watch.PollInterval)
		color.Yellow("\n• Type a new amount and press enter to requote")
		color.Yellow("• Press Ctrl+C or type q to stop\n")
		fmt.Println(strings.Repeat("=", 70) + "\n")
	}

	watcher.Update(watch.Params{From: p.From.Asset, To: &p.To.Asset, FromAmount: p.FromAmount})

	// Amounts typed on stdin replace the watched amount
	input := make(chan struct{})
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if strings.EqualFold(line, "q") {
				return
			}

			amount, err := units.ToBaseUnits(line, p.From.Balance.Decimals())
			if err != nil {
				color.Red("Invalid amount: %v", err)
				continue
			}
			watcher.Update(watch.Params{From: p.From.Asset, To: &p.To.Asset, FromAmount: amount})
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-input:
	}

	watcher.Close()
	<-done

	if !jsonOutput {
		printSuccess("Watcher stopped.")
	}
}

func startMetricsServer(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("metrics server stopped")
		}
	}()
	a.logger.WithField("addr", addr).Info("serving metrics")

	return server
}

// watchOutput is one watcher result as JSON
type watchOutput struct {
	Generation  uint64    `json:"generation"`
	FromAmount  string    `json:"from_amount"`
	ToAmount    string    `json:"to_amount,omitempty"`
	Rate        string    `json:"rate,omitempty"`
	PriceImpact string    `json:"price_impact,omitempty"`
	Error       string    `json:"error,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func displayWatchResult(p *pair, result watch.Result, jsonOutput bool) {
	fromDecimals := p.From.Balance.Decimals()
	toDecimals := p.To.Balance.Decimals()

	out := watchOutput{
		Generation: result.Generation,
		FromAmount: "0",
		FetchedAt:  result.FetchedAt,
	}
	if result.Params.FromAmount != nil {
		out.FromAmount = units.FromBaseUnits(result.Params.FromAmount, fromDecimals)
	}

	switch {
	case result.Err != nil:
		out.Error = result.Err.Error()
	case result.QuoteFailed:
		out.Error = "no route found"
	case result.Quote != nil:
		out.ToAmount = units.FromBaseUnits(result.Quote.OutAmount(), toDecimals)
		out.Rate = swap.DisplayRate(result.Quote.OutAmount(), result.Params.FromAmount, fromDecimals, toDecimals)
		out.PriceImpact = swap.DisplayPriceImpact(swap.QuotePriceImpact(result.Quote))
	}

	if jsonOutput {
		jsonData, _ := json.Marshal(out)
		fmt.Println(string(jsonData))
		return
	}

	symbolFrom := p.From.Balance.TokenListEntry.Symbol
	symbolTo := p.To.Balance.TokenListEntry.Symbol
	timestamp := color.HiBlackString(out.FetchedAt.Format("15:04:05"))

	switch {
	case out.Error != "":
		fmt.Printf("%s  %s %s: %s\n", timestamp, out.FromAmount, symbolFrom, color.RedString(out.Error))
	case result.Quote == nil:
		fmt.Printf("%s  %s\n", timestamp, color.HiBlackString("quote cleared"))
	default:
		fmt.Printf("%s  %s %s -> ~%s %s  (rate %s, impact %s%%)\n",
			timestamp,
			out.FromAmount, symbolFrom,
			color.GreenString(out.ToAmount), symbolTo,
			out.Rate, out.PriceImpact)
	}
}
