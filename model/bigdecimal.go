package model

import (
	"fmt"
	"math/big"
	"strings"
)

// BigDecimal is digits * 10^exp, an arbitrary-precision signed decimal
// (spec §3.1/§4.1). Two BigDecimals are Equal iff they denote the same
// rational number, regardless of how they were scaled (1.0 == 1.00).
type BigDecimal struct {
	digits *big.Int
	exp    int32
}

// divisionPrecision is the minimum number of decimal digits of
// precision BigDecimal.DividedBy computes to, per spec §4.1 ("at
// least 100 decimal digits").
const divisionPrecision = 100

// NewDecimal constructs digits * 10^exp.
func NewDecimal(digits *big.Int, exp int32) BigDecimal {
	return BigDecimal{digits: new(big.Int).Set(digits), exp: exp}
}

func (d BigDecimal) Digits() *big.Int {
	if d.digits == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.digits)
}

func (d BigDecimal) Exp() int32 { return d.exp }

func (d BigDecimal) rat() *big.Rat {
	digits := d.Digits()
	r := new(big.Rat).SetInt(digits)
	if d.exp == 0 {
		return r
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(absInt32(d.exp))), nil)
	scaleRat := new(big.Rat).SetInt(scale)
	if d.exp > 0 {
		return r.Mul(r, scaleRat)
	}
	return r.Quo(r, scaleRat)
}

func absInt32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// Equal reports rational equivalence.
func (d BigDecimal) Equal(other BigDecimal) bool {
	return d.rat().Cmp(other.rat()) == 0
}

// Cmp totally orders two BigDecimals by rational value.
func (d BigDecimal) Cmp(other BigDecimal) int {
	return d.rat().Cmp(other.rat())
}

func (d BigDecimal) Plus(other BigDecimal) BigDecimal  { return fromRat(new(big.Rat).Add(d.rat(), other.rat())) }
func (d BigDecimal) Minus(other BigDecimal) BigDecimal { return fromRat(new(big.Rat).Sub(d.rat(), other.rat())) }
func (d BigDecimal) Times(other BigDecimal) BigDecimal { return fromRat(new(big.Rat).Mul(d.rat(), other.rat())) }

// DividedBy computes d/other to at least divisionPrecision decimal
// digits. Division by zero is a deterministic error (spec B2).
func (d BigDecimal) DividedBy(other BigDecimal) (BigDecimal, error) {
	if other.rat().Sign() == 0 {
		return BigDecimal{}, ErrDivideByZero
	}
	q := new(big.Rat).Quo(d.rat(), other.rat())
	return ratToFixedDecimal(q, divisionPrecision), nil
}

// fromRat renders a Rat back into a BigDecimal: an integer keeps scale
// 0, anything else is rounded to divisionPrecision decimal places.
func fromRat(r *big.Rat) BigDecimal {
	if r.IsInt() {
		return BigDecimal{digits: new(big.Int).Set(r.Num()), exp: 0}
	}
	return ratToFixedDecimal(r, divisionPrecision)
}

// ratToFixedDecimal renders r at `digits` decimal places of scale.
func ratToFixedDecimal(r *big.Rat, digits int) BigDecimal {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scale))
	// round to nearest integer
	num := scaled.Num()
	den := scaled.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	rem2 := new(big.Int).Mul(rem, big.NewInt(2))
	rem2.Abs(rem2)
	if rem2.Cmp(den) >= 0 {
		if scaled.Sign() >= 0 {
			q.Add(q, big.NewInt(1))
		} else {
			q.Sub(q, big.NewInt(1))
		}
	}
	return BigDecimal{digits: q, exp: int32(-digits)}
}

// String renders digits with a decimal point at exp, the canonical
// form bigDecimalToString produces.
func (d BigDecimal) String() string {
	digits := d.Digits()
	neg := digits.Sign() < 0
	if neg {
		digits = digits.Neg(digits)
	}
	s := digits.String()
	exp := d.exp
	var out string
	switch {
	case exp == 0:
		out = s
	case exp > 0:
		out = s + strings.Repeat("0", int(exp))
	default:
		frac := int(-exp)
		for len(s) <= frac {
			s = "0" + s
		}
		intPart := s[:len(s)-frac]
		fracPart := s[len(s)-frac:]
		out = intPart + "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseBigDecimal parses the canonical string form (optional sign,
// digits, optional '.' and fractional digits). Used by
// bigDecimalFromString in the host bridge.
func ParseBigDecimal(s string) (BigDecimal, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return BigDecimal{}, fmt.Errorf("model: invalid decimal %q", orig)
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && (!hasFrac || fracPart == "") {
		return BigDecimal{}, fmt.Errorf("model: invalid decimal %q", orig)
	}
	digitsStr := intPart + fracPart
	if digitsStr == "" {
		digitsStr = "0"
	}
	for _, c := range digitsStr {
		if c < '0' || c > '9' {
			return BigDecimal{}, fmt.Errorf("model: invalid decimal %q", orig)
		}
	}
	digits, ok := new(big.Int).SetString(digitsStr, 10)
	if !ok {
		return BigDecimal{}, fmt.Errorf("model: invalid decimal %q", orig)
	}
	if neg {
		digits.Neg(digits)
	}
	return BigDecimal{digits: digits, exp: int32(-len(fracPart))}, nil
}
