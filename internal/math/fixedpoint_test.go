package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulRatio_Rounding(t *testing.T) {
	tests := []struct {
		name             string
		amount, num, den int64
		mode             RoundingMode
		want             int64
	}{
		{"payout 1.5x", Units(1), 3, 2, RoundDown, 1_500_000},
		{"down", 7, 1, 2, RoundDown, 3},
		{"up", 7, 1, 2, RoundUp, 4},
		{"half even to even", 5, 1, 2, RoundHalfEven, 2},
		{"half even up", 7, 1, 2, RoundHalfEven, 4},
		{"no overflow in product", math.MaxInt64, 2, 2, RoundDown, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulRatio(tt.amount, tt.num, tt.den, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMulRatio_Errors(t *testing.T) {
	_, err := MulRatio(1, 1, 0, RoundDown)
	assert.Error(t, err)

	_, err = MulRatio(math.MaxInt64, 3, 2, RoundDown)
	assert.Error(t, err)
}

func TestAddChecked(t *testing.T) {
	sum, err := AddChecked(Units(10), Units(1))
	require.NoError(t, err)
	assert.Equal(t, Units(11), sum)

	_, err = AddChecked(math.MaxInt64, 1)
	assert.Error(t, err)
	_, err = AddChecked(math.MinInt64, -1)
	assert.Error(t, err)
}

func TestFormatAndParseAmount(t *testing.T) {
	assert.Equal(t, "10", FormatAmount(Units(10)))
	assert.Equal(t, "1.5", FormatAmount(1_500_000))
	assert.Equal(t, "0.000001", FormatAmount(1))
	assert.Equal(t, "-2.25", FormatAmount(-2_250_000))

	for _, s := range []string{"10", "1.5", "0.000001", "123.456789"} {
		v, err := ParseAmount(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, FormatAmount(v))
	}

	for _, bad := range []string{"", "abc", "1.0000001", "-1", "99999999999999999999"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
