package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBigIntDividedByAndMod(t *testing.T) {
	ten := big.NewInt(10)
	three := big.NewInt(3)

	q, err := BigIntDividedBy(ten, three)
	require.NoError(t, err)
	require.Equal(t, "3", q.String())

	m, err := BigIntMod(ten, three)
	require.NoError(t, err)
	require.Equal(t, "1", m.String())
}

func TestBigIntDivideByZeroIsDeterministic(t *testing.T) {
	_, err := BigIntDividedBy(big.NewInt(10), big.NewInt(0))
	require.ErrorIs(t, err, ErrDivideByZero)

	_, err = BigIntMod(big.NewInt(10), big.NewInt(0))
	require.ErrorIs(t, err, ErrDivideByZero)
}

func TestBigIntPow(t *testing.T) {
	p, err := BigIntPow(big.NewInt(2), 10)
	require.NoError(t, err)
	require.Equal(t, "1024", p.String())

	_, err = BigIntPow(big.NewInt(2), 256)
	require.ErrorIs(t, err, ErrExponentTooLarge)
}

func TestBigIntToHexZero(t *testing.T) {
	require.Equal(t, "0x0", BigIntToHex(big.NewInt(0)))
	require.Equal(t, "0x2a", BigIntToHex(big.NewInt(42)))
}

func TestBigIntRoundTripThroughString(t *testing.T) {
	cases := []string{"0", "1", "-1", "123456789012345678901234567890"}
	for _, c := range cases {
		x, ok := new(big.Int).SetString(c, 10)
		require.True(t, ok)
		s := x.String()
		y, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		require.Equal(t, 0, x.Cmp(y))
	}
}

func TestValueCrossKindComparePanics(t *testing.T) {
	require.Panics(t, func() {
		NewInt(1).Compare(NewString("1"))
	})
}

func TestValueEqualityWithinKind(t *testing.T) {
	require.True(t, NewInt(1).Equal(NewInt(1)))
	require.False(t, NewInt(1).Equal(NewInt(2)))
	require.True(t, NewBytes([]byte{1, 2}).Equal(NewBytes([]byte{1, 2})))
}
