package parser

import (
	"fmt"
	"regexp"
	"strings"

	"wallet-swap/pkg/types"
)

// SwapCommand is a parsed swap request in token symbols
type SwapCommand struct {
	Amount      string
	SourceToken string
	DestToken   string
	// Chain is set when the command names one ("... on solana")
	Chain types.Blockchain
}

// Pattern: <amount> <source_token> TO <dest_token> [ON <chain>]
var swapPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)\s+\$?([A-Z0-9]+)\s+TO\s+\$?([A-Z0-9]+)(?:\s+ON\s+([A-Z]+))?$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC"
//   - "1.5 ETH to DAI on ethereum"
//   - "100 USDC to $BONK"
func ParseSwapCommand(command string) (*SwapCommand, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token> [on <chain>]' (e.g., 'swap 1 SOL to USDC')")
	}

	cmd := &SwapCommand{
		Amount:      matches[1],
		SourceToken: matches[2],
		DestToken:   matches[3],
	}
	if matches[4] != "" {
		cmd.Chain = types.ParseBlockchain(matches[4])
	}

	return cmd, nil
}

// Validate checks that a swap command has all required fields
func (c *SwapCommand) Validate() error {
	if c.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if c.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if c.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if c.SourceToken == c.DestToken {
		return fmt.Errorf("source and destination token must differ")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	return strings.TrimPrefix(strings.TrimSpace(strings.ToUpper(symbol)), "$")
}
