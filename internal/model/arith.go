package model

import (
	"math"
	"math/big"

	"github.com/rotisserie/eris"
)

// AddAmount returns a+b, failing on int64 overflow.
func AddAmount(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, eris.Wrapf(ErrArithmetic, "amount overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// SaturatingAdd returns a+b clamped to the int64 range.
func SaturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// MulDiv returns floor(a*b/c) with a 128-bit-safe intermediate. The
// divisor must be positive and the result must fit in an int64.
func MulDiv(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, eris.Wrap(ErrArithmetic, "division by zero")
	}
	if a < 0 || b < 0 || c < 0 {
		return 0, eris.Wrapf(ErrArithmetic, "negative operand: %d * %d / %d", a, b, c)
	}
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	r.Quo(r, big.NewInt(c))
	if !r.IsInt64() {
		return 0, eris.Wrapf(ErrArithmetic, "result overflow: %d * %d / %d", a, b, c)
	}
	return r.Int64(), nil
}
