package numbers

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// WadScale is the 1e18 fixed point scale used by on-chain ratios.
var WadScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ToDisplayDecimal converts a raw on-chain integer amount into token units.
// The conversion is exact; nothing is rounded.
func ToDisplayDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToDisplayFloat is the last step before rendering. Never compare its result.
func ToDisplayFloat(raw *big.Int, decimals int32) float64 {
	return ToDisplayDecimal(raw, decimals).InexactFloat64()
}

// FormatUnits renders a raw amount in token units, e.g. 86400e15 with 18 decimals -> "86.4".
func FormatUnits(raw *big.Int, decimals int32) string {
	return ToDisplayDecimal(raw, decimals).String()
}

// FromDisplayDecimal converts token units back to the raw integer amount.
// Digits beyond the token precision are truncated.
func FromDisplayDecimal(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).BigInt()
}

// ParseUnits parses a decimal string in token units into a raw amount.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amount, err)
	}
	if d.Exponent() < -decimals {
		return nil, fmt.Errorf("amount '%s' exceeds %d decimals of precision", amount, decimals)
	}
	return FromDisplayDecimal(d, decimals), nil
}

// MaxBig returns the larger of a and b.
func MaxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// CeilDiv returns ceil(a / b) for non-negative a and positive b.
func CeilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
