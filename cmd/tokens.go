package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/types"
)

var (
	filterChain     string
	filterSymbol    string
	swapTokensChain string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List known tokens",
	Long: `List the tokens in the token list. The built-in list is merged with the
tokens reported by the 1Click API.

You can filter tokens by blockchain or symbol.

Examples:
  wallet-swap tokens
  wallet-swap tokens --chain solana
  wallet-swap tokens --symbol USDC
  wallet-swap tokens inputs --chain ethereum
  wallet-swap tokens outputs SOL`,
	Run: runListTokens,
}

var tokensInputsCmd = &cobra.Command{
	Use:   "inputs",
	Short: "List wallet tokens that can be swapped from",
	Run:   runInputTokens,
}

var tokensOutputsCmd = &cobra.Command{
	Use:   "outputs <source-token>",
	Short: "List the tokens a token can be swapped to",
	Args:  cobra.ExactArgs(1),
	Run:   runOutputTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensInputsCmd)
	tokensCmd.AddCommand(tokensOutputsCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")

	for _, c := range []*cobra.Command{tokensInputsCmd, tokensOutputsCmd} {
		c.Flags().StringVar(&swapTokensChain, "chain", string(types.BlockchainSolana), "Blockchain (solana or ethereum)")
	}
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a := mustApp(cmd)
	defer a.Close()

	// Get tokens with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	tokens := a.registry.Load(context.Background())
	if !jsonOutput {
		s.Stop()
	}

	// Apply filters
	filtered := tokens
	if filterChain != "" {
		chain := types.ParseBlockchain(filterChain)
		var temp []types.TokenListEntry
		for _, token := range filtered {
			if token.Blockchain == chain {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	if filterSymbol != "" {
		var temp []types.TokenListEntry
		for _, token := range filtered {
			if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func displayTokens(tokens []types.TokenListEntry) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	tokensByChain := make(map[types.Blockchain][]types.TokenListEntry)
	for _, token := range tokens {
		tokensByChain[token.Blockchain] = append(tokensByChain[token.Blockchain], token)
	}

	// Sort chains alphabetically
	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, string(chain))
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[types.Blockchain(chain)] {
			fmt.Printf("  %-10s  %2d decimals  chain %-5d  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				token.ChainID,
				color.HiBlackString(truncateString(token.Address, 44)))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}

func runInputTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	chain := types.ParseBlockchain(swapTokensChain)

	a := mustApp(cmd)
	defer a.Close()

	ctx := context.Background()

	from, balances, err := loadWallet(ctx, a, chain, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	valid, err := a.router.ValidInputTokens(ctx, from, nil, balances)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	displayBalances(fmt.Sprintf("SWAPPABLE TOKENS ON %s", strings.ToUpper(string(chain))), valid, jsonOutput)
}

func runOutputTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	chain := types.ParseBlockchain(swapTokensChain)

	a := mustApp(cmd)
	defer a.Close()

	ctx := context.Background()

	entry, err := a.lookupToken(ctx, chain, args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	from, balances, err := loadWallet(ctx, a, chain, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	from.Mint = entry.Address

	outputs, err := a.router.OutputTokens(ctx, from, nil, balances)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	displayBalances(fmt.Sprintf("%s CAN BE SWAPPED TO", entry.Symbol), outputs, jsonOutput)
}

// loadWallet loads every balance of the configured wallet on a chain
func loadWallet(ctx context.Context, a *app, chain types.Blockchain, jsonOutput bool) (types.Asset, []types.TokenBalance, error) {
	wallet, err := a.wallet(chain)
	if err != nil {
		return types.Asset{}, nil, err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Loading wallet balances..."
		s.Start()
	}
	balances, err := a.balances.Wallet(ctx, chain, wallet)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return types.Asset{}, nil, err
	}

	return types.Asset{WalletPublicKey: wallet, Blockchain: chain}, balances, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
