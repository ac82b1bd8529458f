// Package model implements the scalar and entity data model (spec §3.1,
// component C1): the Value tagged union, big-number arithmetic, and the
// Entity/EntityType/EntityKey types mapping code and the relational
// store exchange.
package model

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind tags a Value's variant. Every variant is totally ordered only
// within its own kind; cross-kind comparison is undefined (Compare
// panics on mismatched kinds).
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindBigDecimal
	KindString
	KindBytes
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindBigInt:
		return "BigInt"
	case KindBigDecimal:
		return "BigDecimal"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindList:
		return "List"
	default:
		return "Unknown"
	}
}

// Value is the tagged union described in spec §3.1.
type Value struct {
	kind   Kind
	b      bool
	i32    int32
	bigInt *big.Int
	dec    *BigDecimal
	str    string
	bytes  []byte
	list   []Value
}

// Null is the singleton Null value.
var Null = Value{kind: KindNull}

func NewBool(b bool) Value    { return Value{kind: KindBool, b: b} }
func NewInt(i int32) Value    { return Value{kind: KindInt, i32: i} }
func NewString(s string) Value { return Value{kind: KindString, str: s} }
func NewBytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bytes: cp}
}
func NewList(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// NewBigInt wraps a big.Int by value (defensive copy).
func NewBigInt(i *big.Int) Value {
	return Value{kind: KindBigInt, bigInt: new(big.Int).Set(i)}
}

// NewBigDecimal wraps a BigDecimal.
func NewBigDecimal(d BigDecimal) Value {
	cp := d
	return Value{kind: KindBigDecimal, dec: &cp}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) AsBool() bool  { return v.b }
func (v Value) AsInt() int32  { return v.i32 }
func (v Value) AsString() string { return v.str }
func (v Value) AsBytes() []byte {
	cp := make([]byte, len(v.bytes))
	copy(cp, v.bytes)
	return cp
}
func (v Value) AsList() []Value {
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp
}
func (v Value) AsBigInt() *big.Int {
	if v.bigInt == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.bigInt)
}
func (v Value) AsBigDecimal() BigDecimal {
	if v.dec == nil {
		return BigDecimal{}
	}
	return *v.dec
}

// Equal reports structural equality. BigDecimal equality is rational
// equivalence (1.0 == 1.00); BigInt equality is exact.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i32 == other.i32
	case KindBigInt:
		return v.AsBigInt().Cmp(other.AsBigInt()) == 0
	case KindBigDecimal:
		return v.AsBigDecimal().Equal(other.AsBigDecimal())
	case KindString:
		return v.str == other.str
	case KindBytes:
		return string(v.bytes) == string(other.bytes)
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare totally orders two values of the same kind. It panics on
// cross-kind comparisons, per spec §3.1 ("cross-kind comparison is
// undefined").
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		panic(fmt.Sprintf("model: cross-kind comparison %s vs %s is undefined", v.kind, other.kind))
	}
	switch v.kind {
	case KindNull:
		return 0
	case KindBool:
		if v.b == other.b {
			return 0
		}
		if !v.b {
			return -1
		}
		return 1
	case KindInt:
		switch {
		case v.i32 < other.i32:
			return -1
		case v.i32 > other.i32:
			return 1
		default:
			return 0
		}
	case KindBigInt:
		return v.AsBigInt().Cmp(other.AsBigInt())
	case KindBigDecimal:
		return v.AsBigDecimal().Cmp(other.AsBigDecimal())
	case KindString:
		return strings.Compare(v.str, other.str)
	case KindBytes:
		return strings.Compare(string(v.bytes), string(other.bytes))
	default:
		panic(fmt.Sprintf("model: %s is not totally ordered", v.kind))
	}
}

// --- BigInt arithmetic (spec §4.1) ---

// ErrDivideByZero is returned (wrapped by the caller into a
// deterministic host error) by BigIntDividedBy/BigIntMod on a zero
// divisor.
var ErrDivideByZero = fmt.Errorf("model: division by zero")

// ErrExponentTooLarge is returned by BigIntPow when exp > 255.
var ErrExponentTooLarge = fmt.Errorf("model: exponent exceeds 255")

func BigIntPlus(a, b *big.Int) *big.Int  { return new(big.Int).Add(a, b) }
func BigIntMinus(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }
func BigIntTimes(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) }

func BigIntDividedBy(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	return new(big.Int).Quo(a, b), nil
}

func BigIntMod(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	return new(big.Int).Rem(a, b), nil
}

// BigIntPow raises a to exp, exp in [0,255] per spec §4.1.
func BigIntPow(a *big.Int, exp uint64) (*big.Int, error) {
	if exp > 255 {
		return nil, ErrExponentTooLarge
	}
	return new(big.Int).Exp(a, new(big.Int).SetUint64(exp), nil), nil
}

func BigIntBitOr(a, b *big.Int) *big.Int  { return new(big.Int).Or(a, b) }
func BigIntBitAnd(a, b *big.Int) *big.Int { return new(big.Int).And(a, b) }

// BigIntLeftShift shifts a left by bits, bits in [0,255].
func BigIntLeftShift(a *big.Int, bits uint64) (*big.Int, error) {
	if bits > 255 {
		return nil, ErrExponentTooLarge
	}
	return new(big.Int).Lsh(a, uint(bits)), nil
}

// BigIntRightShift shifts a right by bits, bits in [0,255].
func BigIntRightShift(a *big.Int, bits uint64) (*big.Int, error) {
	if bits > 255 {
		return nil, ErrExponentTooLarge
	}
	return new(big.Int).Rsh(a, uint(bits)), nil
}

// BigIntToHex encodes a signed big.Int's magnitude as big-endian hex,
// stripping leading zero bytes; zero encodes as "0x0". Sign is not
// encoded in the hex form (callers needing sign carry it out of band,
// matching the wire convention used by the mapping host bridge's
// bigIntToHex export).
func BigIntToHex(a *big.Int) string {
	if a.Sign() == 0 {
		return "0x0"
	}
	b := a.Bytes() // big-endian magnitude, no leading zero bytes already
	return "0x" + fmt.Sprintf("%x", b)
}

// Uint256Hex is a fast-path hex render for values that fit in 256 bits,
// used by the host bridge when it already knows the value is unsigned
// and bounded (e.g. decoded Ethereum uint256 call results).
func Uint256Hex(a *big.Int) (string, error) {
	u, overflow := uint256.FromBig(a)
	if overflow {
		return "", fmt.Errorf("model: value does not fit in 256 bits")
	}
	return u.Hex(), nil
}

// AddressFromHex parses a hex Ethereum-style address into its 20 raw
// bytes, used by stringToAddress in the host bridge.
func AddressFromHex(s string) ([]byte, error) {
	if !common.IsHexAddress(s) {
		return nil, fmt.Errorf("model: %q is not a valid address", s)
	}
	return common.HexToAddress(s).Bytes(), nil
}

// SortedKeys returns ks sorted, used wherever deterministic iteration
// order over attribute names is required (spec §4.1).
func SortedKeys(ks []string) []string {
	out := make([]string, len(ks))
	copy(out, ks)
	sort.Strings(out)
	return out
}
