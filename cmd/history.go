package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/history"
)

var historyStatusFilter string

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show swaps sent from this machine",
	Long: `List the swaps recorded in the local history file, newest first, or show
one swap in detail. Run 'wallet-swap status <signature>' to refresh a pending swap.

Examples:
  wallet-swap history
  wallet-swap history --status pending
  wallet-swap history 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (pending, confirmed, failed)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// History does not need any RPC connection, only the storage path
	cfg, err := loadConfig()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	store, err := history.NewStorage(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(args) == 1 {
		showHistoryRecord(store, args[0], jsonOutput)
		return
	}

	var records []*history.Record
	if historyStatusFilter != "" {
		records = store.ListByStatus(history.Status(strings.ToLower(historyStatusFilter)))
	} else {
		records = store.List()
	}

	if jsonOutput {
		output, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(output))
		return
	}

	if len(records) == 0 {
		color.Yellow("No swaps recorded in %s\n", store.GetFilePath())
		fmt.Println("\nSend a swap with:")
		color.Cyan("  wallet-swap swap <amount> <token> to <token>\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 110))
	color.Green("                                              SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 110))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nDATE\tCHAIN\tPAIR\tRATE\tSTATUS\tSIGNATURE")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s -> %s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Chain,
			r.FromSymbol, r.ToSymbol,
			r.Rate,
			getColoredStatus(r.Status),
			truncateString(r.Signature, 24))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 110))
	fmt.Printf("\nTotal: %d swaps\n\n", len(records))
}

func showHistoryRecord(store *history.Storage, id string, jsonOutput bool) {
	record, err := store.Get(id)
	if err != nil {
		// Accept a signature as well as an id
		record, err = store.FindBySignature(id)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP DETAILS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  ID:              %s\n", record.ID)
	fmt.Printf("  Created:         %s\n", record.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Chain:           %s\n", record.Chain)
	fmt.Printf("  Wallet:          %s\n", record.Wallet)
	fmt.Printf("  From:            %s %s\n", record.FromAmount, color.YellowString(record.FromSymbol))
	fmt.Printf("  To:              ~%s %s\n", record.ToAmount, color.YellowString(record.ToSymbol))
	fmt.Printf("  Rate:            %s\n", record.Rate)
	fmt.Printf("  Price Impact:    %s%%\n", record.PriceImpact)

	labels := make([]string, 0, len(record.Fees))
	for label := range record.Fees {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("  %-17s%s\n", label+":", record.Fees[label])
	}

	fmt.Printf("  Signature:       %s\n", color.CyanString(record.Signature))
	fmt.Printf("  Status:          %s\n", getColoredStatus(record.Status))
	if record.Error != "" {
		fmt.Printf("  Error:           %s\n", color.RedString(record.Error))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
