package math

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

// AmountConfig is the precision of every ledger amount (1 unit = 1_000_000).
var AmountConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}

// Units converts a whole number of currency units into fixed-point.
func Units(n int64) int64 {
	return n * AmountConfig.Scale
}

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with rounding.
// Only non-negative operands are expected.
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) (int64, error) {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()
	defer putInt128(quotient)
	defer putInt128(remainder)

	quotient.QuoRem(numerator, denom, remainder)
	if !quotient.IsInt64() {
		return 0, fmt.Errorf("fixed-point overflow: %s / %d", numerator.String(), denominator)
	}
	result := quotient.Int64()

	switch roundingMode {
	case RoundUp:
		if remainder.Sign() != 0 {
			result++
		}
	case RoundHalfEven:
		// Banker's rounding: if 2*remainder == denominator, round to even
		twice := getInt128()
		defer putInt128(twice)
		twice.Lsh(remainder, 1)
		cmp := twice.Cmp(denom)
		if cmp > 0 || (cmp == 0 && result%2 != 0) {
			result++
		}
	}

	return result, nil
}

// MulRatio computes amount * num / den without intermediate overflow.
func MulRatio(amount, num, den int64, mode RoundingMode) (int64, error) {
	if den == 0 {
		return 0, fmt.Errorf("fixed-point division by zero")
	}
	product := MultiplyInt128(amount, num)
	defer putInt128(product)
	return DivideInt128(product, den, mode)
}

// AddChecked returns a + b or an error on int64 overflow.
func AddChecked(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("fixed-point overflow: %d + %d", a, b)
	}
	return sum, nil
}

// FormatAmount renders a fixed-point amount as a decimal string ("1.5").
func FormatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / AmountConfig.Scale
	frac := v % AmountConfig.Scale
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	fracStr := fmt.Sprintf("%0*d", AmountConfig.DecimalPrecision, frac)
	return fmt.Sprintf("%s%d.%s", sign, whole, strings.TrimRight(fracStr, "0"))
}

// ParseAmount parses a decimal string ("10", "1.5") into fixed-point.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	wholeStr, fracStr, _ := strings.Cut(s, ".")
	if len(fracStr) > AmountConfig.DecimalPrecision {
		return 0, fmt.Errorf("amount %q: more than %d decimals", s, AmountConfig.DecimalPrecision)
	}
	fracStr += strings.Repeat("0", AmountConfig.DecimalPrecision-len(fracStr))

	r, ok := new(big.Int).SetString(wholeStr+fracStr, 10)
	if !ok || r.Sign() < 0 {
		return 0, fmt.Errorf("amount %q: not a non-negative decimal", s)
	}
	if !r.IsInt64() {
		return 0, fmt.Errorf("amount %q: overflow", s)
	}
	return r.Int64(), nil
}
