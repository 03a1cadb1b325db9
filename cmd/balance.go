package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/types"
	"wallet-swap/pkg/units"
)

var (
	balanceChain string
	showEmpty    bool
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show wallet balances",
	Long: `Show the configured wallet's balance of every known token on a chain,
together with the amount available to swap after rent and account reserves.

Examples:
  wallet-swap balance
  wallet-swap balance --chain ethereum --all`,
	Run: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceChain, "chain", string(types.BlockchainSolana), "Blockchain (solana or ethereum)")
	balanceCmd.Flags().BoolVar(&showEmpty, "all", false, "Include tokens with a zero balance")
}

// balanceView is one token balance prepared for display
type balanceView struct {
	types.TokenBalance
	Available string `json:"available_for_swap"`
}

func runBalance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	chain := types.ParseBlockchain(balanceChain)

	a := mustApp(cmd)
	defer a.Close()

	from, balances, err := loadWallet(context.Background(), a, chain, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	views := make([]balanceView, 0, len(balances))
	for _, b := range balances {
		if !showEmpty && b.Amount.Sign() == 0 {
			continue
		}

		asset := from
		asset.Mint = b.Token
		available, err := a.router.AvailableForSwap(asset, nil, b.Amount)
		if err != nil {
			printError(err)
			os.Exit(1)
		}

		views = append(views, balanceView{
			TokenBalance: b,
			Available:    units.FromBaseUnits(available, b.Decimals()),
		})
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Printf("\nWallet: %s\n", color.CyanString(from.WalletPublicKey))
	if len(views) == 0 {
		color.Yellow("\nNo token balances found on %s.\n", chain)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                              BALANCES")
	fmt.Println(strings.Repeat("=", 80))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTOKEN\tBALANCE\tAVAILABLE\tADDRESS")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", symbolOf(v.TokenBalance), v.DisplayAmount, v.Available, truncateString(v.Token, 44))
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}

// displayBalances prints a list of token balances as a table or JSON
func displayBalances(title string, balances []types.TokenBalance, jsonOutput bool) {
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(balances, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(balances) == 0 {
		fmt.Println("\nNo tokens found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("  %s", title)
	fmt.Println(strings.Repeat("=", 80))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTOKEN\tNAME\tBALANCE\tADDRESS")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, b := range balances {
		name := ""
		if b.TokenListEntry != nil {
			name = b.TokenListEntry.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", symbolOf(b), name, b.DisplayAmount, truncateString(b.Token, 44))
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("\nTotal: %d tokens\n\n", len(balances))
}

func symbolOf(b types.TokenBalance) string {
	if b.TokenListEntry == nil || b.TokenListEntry.Symbol == "" {
		return truncateString(b.Token, 12)
	}
	return b.TokenListEntry.Symbol
}
