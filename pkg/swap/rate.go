package swap

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// rateDecimals is the fixed-point precision rates are computed at
const rateDecimals = 18

// DisplayRate formats the output-per-input rate of a quote, scaled by the
// decimal difference of the two tokens. It returns "0" unless fromAmount is positive.
func DisplayRate(outAmount, fromAmount *big.Int, fromDecimals, toDecimals int) string {
	if fromAmount == nil || fromAmount.Sign() <= 0 {
		return "0"
	}
	if outAmount == nil {
		outAmount = big.NewInt(0)
	}

	// out / from, truncated to rateDecimals
	scaled := new(big.Int).Mul(outAmount, new(big.Int).Exp(big.NewInt(10), big.NewInt(rateDecimals), nil))
	rate := decimal.NewFromBigInt(scaled.Quo(scaled, fromAmount), -rateDecimals)

	diff := fromDecimals - toDecimals
	switch {
	case diff > 0:
		rate = rate.Shift(int32(diff))
	case diff < 0:
		rate = rate.Shift(int32(diff)).Truncate(rateDecimals)
	}

	return commify(rate.StringFixed(rateDecimals))
}

// commify groups the whole part by thousands and trims trailing zeros,
// keeping at least one fractional digit.
func commify(value string) string {
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(value, ".")
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	var groups []string
	for len(whole) > 3 {
		groups = append([]string{whole[len(whole)-3:]}, groups...)
		whole = whole[:len(whole)-3]
	}
	groups = append([]string{whole}, groups...)

	out := strings.Join(groups, ",") + "." + frac
	if negative {
		out = "-" + out
	}
	return out
}

// DisplayPriceImpact formats a price impact percentage for display
func DisplayPriceImpact(pct float64) string {
	if pct == 0 || math.IsNaN(pct) {
		return "0"
	}
	if pct > 0.1 {
		return strconv.FormatFloat(pct, 'f', 2, 64)
	}
	return "< 0.1"
}

// parsePriceImpact reads a provider price impact string, NaN when unparsable
func parsePriceImpact(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// QuotePriceImpact returns the price impact percentage a quote reports
func QuotePriceImpact(quote *types.Quote) float64 {
	switch {
	case quote == nil:
		return 0
	case quote.Kind == types.QuoteKindJupiter && quote.Jupiter != nil:
		return parsePriceImpact(quote.Jupiter.PriceImpactPct)
	case quote.Kind == types.QuoteKindZeroX && quote.ZeroX != nil:
		return parsePriceImpact(quote.ZeroX.EstimatedPriceImpact)
	default:
		return 0
	}
}
