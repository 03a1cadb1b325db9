package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/route"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
	"wallet-swap/pkg/units"
)

var quoteChain string

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Get a swap quote without sending anything",
	Long: `Fetch the best route for a swap and show the rate, price impact and network fees.

Examples:
  wallet-swap quote 1 SOL to USDC
  wallet-swap quote 100 USDC to ETH --chain ethereum
  wallet-swap quote 2 SOL to BONK on solana`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteChain, "chain", "", "Blockchain to swap on (solana or ethereum)")
}

// quoteView is a quote prepared for display
type quoteView struct {
	FromToken   string                `json:"from_token"`
	ToToken     string                `json:"to_token"`
	Chain       types.Blockchain      `json:"chain"`
	FromAmount  string                `json:"from_amount"`
	QuotedIn    string                `json:"quoted_from_amount,omitempty"`
	ToAmount    string                `json:"to_amount"`
	Rate        string                `json:"rate"`
	PriceImpact string                `json:"price_impact"`
	Fees        types.TransactionFees `json:"transaction_fees"`
	Available   string                `json:"available_for_swap"`
	Provider    types.QuoteKind       `json:"provider"`
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	command, err := parseCommand(args, quoteChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a := mustApp(cmd)
	defer a.Close()

	ctx := context.Background()

	p, err := a.resolvePair(ctx, command)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	quote, err := fetchQuote(ctx, a, p, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	fees, err := a.router.EstimateFees(ctx, p.From.Asset, &p.To.Asset, quote, "")
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	view := newQuoteView(a, p, quote, fees)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayQuote(view)
}

// parseCommand parses the swap words and applies the --chain flag
func parseCommand(args []string, chain string) (*parser.SwapCommand, error) {
	command, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	if chain != "" {
		command.Chain = types.ParseBlockchain(chain)
	}
	return command, command.Validate()
}

func unitsFor(amount string, entry types.TokenListEntry) (*big.Int, error) {
	value, err := units.ToBaseUnits(amount, entry.Decimals)
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	return value, nil
}

// fetchQuote fetches a quote behind a spinner. A missing route is an error here.
func fetchQuote(ctx context.Context, a *app, p *pair, jsonOutput bool) (*types.Quote, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	quote, err := a.router.FetchQuote(ctx, p.From.Asset, &p.To.Asset, p.FromAmount)
	if !jsonOutput {
		s.Stop()
	}

	if errors.Is(err, route.ErrBridgeNotImplemented) {
		return nil, fmt.Errorf("%s is on %s and %s is on %s: %w",
			p.From.Balance.TokenListEntry.Symbol, p.From.Asset.Blockchain,
			p.To.Balance.TokenListEntry.Symbol, p.To.Asset.Blockchain, err)
	}
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, fmt.Errorf("no swap route found for %s to %s",
			p.From.Balance.TokenListEntry.Symbol, p.To.Balance.TokenListEntry.Symbol)
	}
	return quote, nil
}

func newQuoteView(a *app, p *pair, quote *types.Quote, fees types.TransactionFees) quoteView {
	fromEntry := p.From.Balance.TokenListEntry
	toEntry := p.To.Balance.TokenListEntry

	view := quoteView{
		FromToken:   fromEntry.Symbol,
		ToToken:     toEntry.Symbol,
		Chain:       p.From.Asset.Blockchain,
		FromAmount:  units.FromBaseUnits(p.FromAmount, fromEntry.Decimals),
		ToAmount:    units.FromBaseUnits(quote.OutAmount(), toEntry.Decimals),
		Rate:        swap.DisplayRate(quote.OutAmount(), p.FromAmount, fromEntry.Decimals, toEntry.Decimals),
		PriceImpact: swap.DisplayPriceImpact(swap.QuotePriceImpact(quote)),
		Fees:        fees,
		Provider:    quote.Kind,
		QuotedIn:    quotedInput(quote, p.FromAmount, fromEntry.Decimals),
	}

	available, err := a.router.AvailableForSwap(p.From.Asset, &p.To.Asset, p.From.Balance.Amount)
	if err == nil {
		view.Available = units.FromBaseUnits(available, fromEntry.Decimals)
	}
	return view
}

// quotedInput returns the amount the provider quoted for when it differs from
// the requested amount, or "" when they match
func quotedInput(quote *types.Quote, requested *big.Int, decimals int) string {
	in := quote.InAmount()
	if in.Sign() == 0 || (requested != nil && in.Cmp(requested) == 0) {
		return ""
	}
	return units.FromBaseUnits(in, decimals)
}

func displayQuote(view quoteView) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", view.FromAmount, color.YellowString(view.FromToken))
	if view.QuotedIn != "" {
		fmt.Printf("  Quoted Input:      %s %s\n", color.HiRedString(view.QuotedIn), view.FromToken)
	}
	fmt.Printf("  To:                ~%s %s\n", view.ToAmount, color.YellowString(view.ToToken))
	fmt.Printf("  Rate:              1 %s = %s %s\n", view.FromToken, view.Rate, view.ToToken)
	fmt.Printf("  Price Impact:      %s%%\n", view.PriceImpact)
	fmt.Printf("  Chain:             %s (%s)\n", view.Chain, view.Provider)
	if view.Available != "" {
		fmt.Printf("  Available:         %s %s\n", view.Available, view.FromToken)
	}
	displayFees(view.Chain, view.Fees)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayFees(chain types.Blockchain, fees types.TransactionFees) {
	decimals, symbol := 9, "SOL"
	if chain == types.BlockchainEthereum {
		decimals, symbol = 18, "ETH"
	}

	labels := make([]string, 0, len(fees.Fees))
	for label := range fees.Fees {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		fmt.Printf("  %-19s%s %s\n", label+":", units.FromBaseUnits(fees.Fees[label], decimals), symbol)
	}
	if fees.Total != nil && len(labels) > 1 {
		fmt.Printf("  %-19s%s %s\n", "Total fees:", units.FromBaseUnits(fees.Total, decimals), symbol)
	}
}
