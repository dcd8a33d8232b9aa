// Package amount converts between raw on-chain token amounts and
// human-readable UI amounts.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToUI scales a raw amount down by 10^decimals. The result carries no
// trailing zeros.
func ToUI(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, int32(-decimals)).String()
}

// ToUIString is ToUI for a base-10 string amount.
func ToUIString(raw string, decimals int) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return "", fmt.Errorf("invalid raw amount %q", raw)
	}
	return ToUI(n, decimals), nil
}

// ToRaw scales a UI amount up by 10^decimals. Digits beyond the token's
// precision are truncated.
func ToRaw(ui string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(ui))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", ui, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", ui)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// ToRawUint64 is ToRaw restricted to amounts that fit an instruction field.
func ToRawUint64(ui string, decimals int) (uint64, error) {
	n, err := ToRaw(ui, decimals)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount %q overflows u64", ui)
	}
	return n.Uint64(), nil
}

// Float returns the UI amount as a float for ordering and display.
func Float(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(raw, int32(-decimals)).Float64()
	return f
}

// Value is raw / 10^decimals × price.
func Value(raw *big.Int, decimals int, price float64) float64 {
	if raw == nil || price == 0 {
		return 0
	}
	v, _ := decimal.NewFromBigInt(raw, int32(-decimals)).Mul(decimal.NewFromFloat(price)).Float64()
	return v
}

// Compare orders two raw amounts by their UI value.
func Compare(a *big.Int, aDecimals int, b *big.Int, bDecimals int) int {
	return uiDecimal(a, aDecimals).Cmp(uiDecimal(b, bDecimals))
}

func uiDecimal(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, int32(-decimals))
}
