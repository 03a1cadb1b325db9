package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/history"
	"wallet-swap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <signature>",
	Short: "Check the status of a swap",
	Long: `Check whether a swap transaction landed, by Solana signature or Ethereum
transaction hash. Swaps recorded in the local history are updated.

Examples:
  wallet-swap status 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW
  wallet-swap status 0x1234...abcd --watch
  wallet-swap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

// txStatus is the on-chain state of a swap transaction
type txStatus struct {
	Signature string           `json:"signature"`
	Chain     types.Blockchain `json:"chain"`
	Status    history.Status   `json:"status"`
	Detail    string           `json:"detail,omitempty"`
	Slot      uint64           `json:"slot,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

func runStatus(cmd *cobra.Command, args []string) {
	signature := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a := mustApp(cmd)
	defer a.Close()

	if watchStatus {
		watchSwapStatus(a, signature, jsonOutput)
	} else {
		checkSwapStatus(a, signature, jsonOutput)
	}
}

func checkSwapStatus(a *app, signature string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	status, err := a.transactionStatus(context.Background(), signature)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status)
	}
}

func watchSwapStatus(a *app, signature string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap status (Signature: %s)\n", color.CyanString(signature))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first, stop once the swap is final
	if checkAndDisplayStatus(a, signature) {
		return
	}

	for range ticker.C {
		if checkAndDisplayStatus(a, signature) {
			return
		}
	}
}

func checkAndDisplayStatus(a *app, signature string) bool {
	status, err := a.transactionStatus(context.Background(), signature)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayStatus(status)
	return status.Status != history.StatusPending
}

// transactionStatus looks up a transaction on the chain its signature belongs to
// and updates the matching history record
func (a *app) transactionStatus(ctx context.Context, signature string) (*txStatus, error) {
	var (
		status *txStatus
		err    error
	)
	if strings.HasPrefix(signature, "0x") {
		status, err = a.ethereumStatus(ctx, signature)
	} else {
		status, err = a.solanaStatus(ctx, signature)
	}
	if err != nil {
		return nil, err
	}

	if record, findErr := a.history.FindBySignature(signature); findErr == nil && record.Status != status.Status {
		if err := a.history.UpdateStatus(record.ID, status.Status, status.Detail); err != nil {
			a.logger.WithError(err).Warn("failed to update swap history")
		}
	}

	return status, nil
}

func (a *app) solanaStatus(ctx context.Context, signature string) (*txStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid solana signature: %w", err)
	}

	status := &txStatus{
		Signature: signature,
		Chain:     types.BlockchainSolana,
		Status:    history.StatusPending,
		CheckedAt: time.Now(),
	}

	// Jupiter swaps are versioned transactions
	maxVersion := uint64(0)
	txInfo, err := a.solanaRPC.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		status.Detail = "transaction not confirmed yet"
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	status.Slot = txInfo.Slot
	if txInfo.Meta != nil && txInfo.Meta.Err != nil {
		status.Status = history.StatusFailed
		status.Detail = fmt.Sprintf("%v", txInfo.Meta.Err)
		return status, nil
	}

	status.Status = history.StatusConfirmed
	if txInfo.Meta != nil {
		status.Detail = fmt.Sprintf("fee %d lamports", txInfo.Meta.Fee)
	}
	return status, nil
}

func (a *app) ethereumStatus(ctx context.Context, hash string) (*txStatus, error) {
	status := &txStatus{
		Signature: hash,
		Chain:     types.BlockchainEthereum,
		Status:    history.StatusPending,
		CheckedAt: time.Now(),
	}

	receipt, err := a.ethClient.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		status.Detail = "transaction not mined yet"
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	status.Slot = receipt.BlockNumber.Uint64()
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		status.Status = history.StatusConfirmed
		status.Detail = fmt.Sprintf("gas used %d", receipt.GasUsed)
	} else {
		status.Status = history.StatusFailed
		status.Detail = "transaction reverted"
	}

	return status, nil
}

func displayStatus(status *txStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Signature:       %s\n", color.CyanString(status.Signature))
	fmt.Printf("  Chain:           %s\n", status.Chain)
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.Detail != "" {
		fmt.Printf("  Detail:          %s\n", status.Detail)
	}
	if status.Slot > 0 {
		label := "Slot:"
		if status.Chain == types.BlockchainEthereum {
			label = "Block:"
		}
		fmt.Printf("  %-17s%d\n", label, status.Slot)
	}
	fmt.Printf("  Last Checked:    %s\n", status.CheckedAt.Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status history.Status) string {
	label := strings.ToUpper(string(status))

	switch status {
	case history.StatusConfirmed:
		return color.GreenString(label)
	case history.StatusPending:
		return color.YellowString(label)
	case history.StatusFailed:
		return color.RedString(label)
	default:
		return label
	}
}
