// Package hostexports implements the fixed host-export surface mapping
// code calls into (component C6): store access, type conversions,
// BigInt/BigDecimal arithmetic, keccak256, JSON decoding, and the
// Ethereum call/encode/decode bridge. Grounded on
// original_source/plugin/runtime/wasm/src/host_exports.rs.
package hostexports

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainspool/indexer/indexerrors"
	"github.com/chainspool/indexer/model"
)

// BytesToString decodes bytes as UTF-8; invalid UTF-8 is a deterministic
// host error (the mapping supplied bytes it claimed were a string).
func BytesToString(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", indexerrors.New(indexerrors.KindDeterministic, "hostexports: bytesToString: invalid UTF-8")
	}
	return string(b), nil
}

// BytesToHex renders b as a 0x-prefixed lowercase hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// BytesToBase58 renders b in Bitcoin-alphabet base58, used for Solana
// addresses and signatures.
func BytesToBase58(b []byte) string {
	return base58.Encode(b)
}

// StringToAddress parses a hex Ethereum address into its 20 raw bytes.
func StringToAddress(s string) ([]byte, error) {
	b, err := model.AddressFromHex(s)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: stringToAddress")
	}
	return b, nil
}

// BigIntToString renders a signed BigInt in decimal.
func BigIntToString(a *big.Int) string { return a.String() }

// BigIntToHex renders a BigInt's magnitude as 0x-prefixed hex.
func BigIntToHex(a *big.Int) string { return model.BigIntToHex(a) }

// BigIntFromString parses a decimal (optionally signed) integer string.
func BigIntFromString(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, indexerrors.New(indexerrors.KindDeterministic, "hostexports: bigIntFromString: invalid integer "+strconv.Quote(s))
	}
	return n, nil
}

// BigDecimalToString renders a BigDecimal in canonical decimal notation.
func BigDecimalToString(d model.BigDecimal) string { return d.String() }

// BigDecimalFromString parses a decimal string into a BigDecimal.
func BigDecimalFromString(s string) (model.BigDecimal, error) {
	d, err := model.ParseBigDecimal(s)
	if err != nil {
		return model.BigDecimal{}, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: bigDecimalFromString")
	}
	return d, nil
}

// Keccak256 hashes data with Ethereum's Keccak-256.
func Keccak256(data []byte) []byte {
	return crypto.Keccak256(data)
}

// JSONFromBytes parses bytes as JSON, returning a deterministic error
// on malformed input (spec §4.6 jsonFromBytes: "fatal on parse
// failure" — fatal here means the handler is discarded, not the
// runtime; see indexerrors.KindDeterministic).
func JSONFromBytes(b []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: jsonFromBytes")
	}
	return v, nil
}

// JSONTryFromBytes is jsonFromBytes with a tagged result instead of an
// error return, matching the mapping-facing success/failure contract.
func JSONTryFromBytes(b []byte) (interface{}, bool) {
	v, err := JSONFromBytes(b)
	return v, err == nil
}

func jsonNumber(v interface{}) (json.Number, bool) {
	switch n := v.(type) {
	case json.Number:
		return n, true
	case float64:
		return json.Number(strconv.FormatFloat(n, 'f', -1, 64)), true
	default:
		return "", false
	}
}

// JSONToI64 coerces a decoded JSON value to int64.
func JSONToI64(v interface{}) (int64, error) {
	n, ok := jsonNumber(v)
	if !ok {
		return 0, indexerrors.New(indexerrors.KindDeterministic, "hostexports: jsonToI64: not a number")
	}
	i, err := n.Int64()
	if err != nil {
		return 0, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: jsonToI64")
	}
	return i, nil
}

// JSONToU64 coerces a decoded JSON value to uint64.
func JSONToU64(v interface{}) (uint64, error) {
	i, err := JSONToI64(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, indexerrors.New(indexerrors.KindDeterministic, "hostexports: jsonToU64: negative value")
	}
	return uint64(i), nil
}

// JSONToF64 coerces a decoded JSON value to float64.
func JSONToF64(v interface{}) (float64, error) {
	n, ok := jsonNumber(v)
	if !ok {
		return 0, indexerrors.New(indexerrors.KindDeterministic, "hostexports: jsonToF64: not a number")
	}
	f, err := n.Float64()
	if err != nil {
		return 0, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: jsonToF64")
	}
	return f, nil
}

// JSONToBigInt coerces a decoded JSON value (number or numeric string)
// to a BigInt.
func JSONToBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case json.Number:
		return BigIntFromString(n.String())
	case float64:
		return BigIntFromString(strconv.FormatFloat(n, 'f', -1, 64))
	case string:
		return BigIntFromString(n)
	default:
		return nil, indexerrors.New(indexerrors.KindDeterministic, "hostexports: jsonToBigInt: not a number")
	}
}

// EthereumEncode ABI-encodes values against the given Solidity type
// signature string, one type per top-level comma (e.g. "uint256",
// "address", "uint256,address"). Each element goes to abi.NewType with
// no components, so a parenthesised element is not built as a tuple.
func EthereumEncode(typesString string, values []interface{}) ([]byte, error) {
	args, err := parseABIArguments(typesString)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: ethereumEncode")
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: ethereumEncode")
	}
	return packed, nil
}

// EthereumDecode ABI-decodes data against typesString.
func EthereumDecode(typesString string, data []byte) ([]interface{}, error) {
	args, err := parseABIArguments(typesString)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: ethereumDecode")
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: ethereumDecode")
	}
	return values, nil
}

func parseABIArguments(typesString string) (abi.Arguments, error) {
	names, err := splitTopLevelCommas(typesString)
	if err != nil {
		return nil, err
	}
	args := make(abi.Arguments, 0, len(names))
	for _, n := range names {
		ty, err := abi.NewType(n, "", nil)
		if err != nil {
			return nil, err
		}
		args = append(args, abi.Argument{Type: ty})
	}
	return args, nil
}

// splitTopLevelCommas splits a Solidity tuple type string on commas
// that are not nested inside parentheses, e.g. "(uint256,address),bool".
func splitTopLevelCommas(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, indexerrors.New(indexerrors.KindDeterministic, "hostexports: unbalanced parentheses in ABI type string")
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, indexerrors.New(indexerrors.KindDeterministic, "hostexports: unbalanced parentheses in ABI type string")
	}
	out = append(out, s[start:])
	return out, nil
}
