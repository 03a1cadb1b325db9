package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/history"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
	"wallet-swap/pkg/units"
)

var (
	swapChain string
	noConfirm bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens from your wallet",
	Long: `Quote, sign and send a same-chain token swap from the configured wallet.

IMPORTANT:
  - A private key for the chain must be configured (solana.private_key or ethereum.private_key)
  - The swap summary must be approved within 20 seconds or it expires

Examples:
  wallet-swap swap 1 SOL to USDC
  wallet-swap swap 0.5 ETH to USDC --chain ethereum
  wallet-swap swap 100 USDC to BONK --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&swapChain, "chain", "", "Blockchain to swap on (solana or ethereum)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	command, err := parseCommand(args, swapChain)
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

	if p.From.Balance.Amount.Cmp(p.FromAmount) < 0 {
		color.Yellow("\nWarning: wallet holds %s %s, less than the swap amount", p.From.Balance.DisplayAmount, command.SourceToken)
	}

	quote, err := fetchQuote(ctx, a, p, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Building transaction..."
		s.Start()
	}
	transaction, err := a.router.FetchTransaction(ctx, p.From.Asset, &p.To.Asset, quote)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		if errors.Is(err, swap.ErrInsufficientAllowance) && !jsonOutput {
			color.Yellow("Approve the exchange to spend %s from your wallet, then retry.", p.From.Balance.TokenListEntry.Symbol)
		}
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("\nTransaction (base64):\n%s\n", transaction)
	}

	var approved swap.Summary
	req := swap.SendRequest{
		From:        p.From.Asset,
		To:          &p.To.Asset,
		FromAmount:  p.FromAmount,
		FromToken:   &p.From.Balance,
		ToToken:     &p.To.Balance,
		Quote:       quote,
		Transaction: transaction,
		Approve: func(summary swap.Summary) bool {
			approved = summary
			if jsonOutput || noConfirm {
				return true
			}
			displaySummary(p, quote, summary)
			return confirmSwap()
		},
	}

	signature, err := a.router.SendTransaction(ctx, req)
	if errors.Is(err, swap.ErrSwapRejected) {
		fmt.Println("\nSwap cancelled.")
		os.Exit(0)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	record := newHistoryRecord(p, approved, signature)
	if err := a.history.Add(record); err != nil {
		a.logger.WithError(err).Warn("failed to record swap history")
	}

	if jsonOutput {
		output := map[string]interface{}{
			"signature": signature,
			"id":        record.ID,
			"summary":   approved,
			"status":    record.Status,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	color.Green("\n✓ Swap sent successfully!")
	fmt.Printf("  Signature: %s\n", color.CyanString(signature))
	fmt.Println("\nYou can monitor the swap status using:")
	color.Cyan("  wallet-swap status %s\n", signature)
}

func newHistoryRecord(p *pair, summary swap.Summary, signature string) *history.Record {
	fees := make(map[string]string, len(summary.Fees.Fees))
	for label, amount := range summary.Fees.Fees {
		fees[label] = amount.String()
	}

	return &history.Record{
		Chain:       p.From.Asset.Blockchain,
		Wallet:      p.From.Asset.WalletPublicKey,
		FromMint:    p.From.Asset.Mint,
		ToMint:      p.To.Asset.Mint,
		FromSymbol:  p.From.Balance.TokenListEntry.Symbol,
		ToSymbol:    p.To.Balance.TokenListEntry.Symbol,
		FromAmount:  summary.FromAmount,
		ToAmount:    summary.ToAmount,
		Rate:        summary.Rate,
		PriceImpact: summary.PriceImpact,
		Fees:        fees,
		Signature:   signature,
	}
}

func displaySummary(p *pair, quote *types.Quote, summary swap.Summary) {
	fromEntry := p.From.Balance.TokenListEntry
	toEntry := p.To.Balance.TokenListEntry

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     CONFIRM SWAP")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  You Pay:           %s %s\n", units.FromBaseUnits(p.FromAmount, fromEntry.Decimals), color.YellowString(fromEntry.Symbol))
	fmt.Printf("  You Receive:       ~%s %s\n", units.FromBaseUnits(quote.OutAmount(), toEntry.Decimals), color.YellowString(toEntry.Symbol))
	fmt.Printf("  Rate:              1 %s = %s %s\n", fromEntry.Symbol, summary.Rate, toEntry.Symbol)
	fmt.Printf("  Price Impact:      %s%%\n", summary.PriceImpact)
	fmt.Printf("  Aggregator Fee:    %.2f%%\n", summary.FeePercent)
	displayFees(p.From.Asset.Blockchain, summary.Fees)
	fmt.Printf("  Expires:           %s\n", summary.ExpiresAt.Format("15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
