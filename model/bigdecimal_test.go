package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBigDecimalEqualityIgnoresScale(t *testing.T) {
	a := NewDecimal(big.NewInt(10), -1) // 1.0
	b := NewDecimal(big.NewInt(100), -2) // 1.00
	require.True(t, a.Equal(b))
}

func TestBigDecimalRoundTripThroughString(t *testing.T) {
	cases := []string{"0", "1", "-1.5", "123.456", "0.001"}
	for _, c := range cases {
		d, err := ParseBigDecimal(c)
		require.NoError(t, err)
		s := d.String()
		d2, err := ParseBigDecimal(s)
		require.NoError(t, err)
		require.True(t, d.Equal(d2), "round trip mismatch for %s -> %s", c, s)
	}
}

func TestBigDecimalDividedByIsHighPrecision(t *testing.T) {
	one := NewDecimal(big.NewInt(1), 0)
	three := NewDecimal(big.NewInt(3), 0)
	q, err := one.DividedBy(three)
	require.NoError(t, err)
	s := q.String()
	// 1/3 should carry at least 100 digits of precision.
	fracLen := len(s) - len("0.")
	require.GreaterOrEqual(t, fracLen, 100)
}

func TestBigDecimalDivideByZero(t *testing.T) {
	one := NewDecimal(big.NewInt(1), 0)
	zero := NewDecimal(big.NewInt(0), 0)
	_, err := one.DividedBy(zero)
	require.ErrorIs(t, err, ErrDivideByZero)
}
