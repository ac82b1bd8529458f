package hostexports

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/chainspool/indexer/indexerrors"
)

// revertSelector is keccak256("Error(string)")[0:4], the Solidity
// revert-with-reason function selector (spec §6.4).
var revertSelector = Keccak256([]byte("Error(string)"))[:4]

// RPCError is the minimal shape of a JSON-RPC error this package
// pattern-matches against, independent of which web3 client library
// produced it.
type RPCError struct {
	Code    int64
	Message string
	Data    string // e.g. Parity's "Reverted 0x..." payload, if present
}

const (
	parityBadInstructionFE = "Bad instruction fe"
	parityBadInstructionFD = "Bad instruction fd"
	parityBadJumpPrefix    = "Bad jump"
	parityStackLimitPrefix = "Out of stack"
	parityRevertPrefix     = "Reverted 0x"
	parityExecutionError   = -32015

	ganacheExecutionError = -32000
	ganacheRevertMessage  = "VM Exception while processing transaction: revert"
)

// gethExecutionErrors are the Geth RPC error message substrings spec
// §6.4 enumerates as deterministic reverts.
var gethExecutionErrors = []string{
	"execution reverted",
	"invalid jump destination",
	"invalid opcode",
	"stack limit reached 1024",
	"out of gas",
}

// CallResult is the outcome of a contract call: either a return-data
// payload, or a revert (Result is nil, Reverted is true, Reason may be
// empty if the node gave no reason).
type CallResult struct {
	Result   []byte
	Reverted bool
	Reason   string
}

// ClassifyCallError inspects an RPCError using the exact bit-for-bit
// patterns of spec §6.4 and decides whether it is a revert (returns a
// CallResult with Reverted=true) or a genuine infrastructure fault
// (returns an error classified PossibleReorg).
func ClassifyCallError(rpcErr *RPCError) (CallResult, error) {
	if rpcErr == nil {
		return CallResult{}, nil
	}

	for _, substr := range gethExecutionErrors {
		if strings.Contains(rpcErr.Message, substr) {
			return CallResult{Reverted: true, Reason: rpcErr.Message}, nil
		}
	}

	if rpcErr.Code == parityExecutionError {
		data := rpcErr.Data
		switch {
		case data == parityBadInstructionFE:
			return CallResult{Reverted: true, Reason: parityBadInstructionFE}, nil
		case data == parityBadInstructionFD:
			return CallResult{Reverted: true, Reason: parityBadInstructionFD}, nil
		case strings.HasPrefix(data, parityBadJumpPrefix):
			return CallResult{Reverted: true, Reason: parityBadJumpPrefix}, nil
		case strings.HasPrefix(data, parityStackLimitPrefix):
			return CallResult{Reverted: true, Reason: parityStackLimitPrefix}, nil
		case strings.HasPrefix(data, parityRevertPrefix):
			reason := decodeParityRevertReason(strings.TrimPrefix(data, parityRevertPrefix))
			return CallResult{Reverted: true, Reason: reason}, nil
		}
		// A -32015 that matched none of the known revert shapes is an
		// unidentified VM execution error: not safe to treat as deterministic.
		return CallResult{}, indexerrors.New(indexerrors.KindPossibleReorg, "hostexports: unidentified parity VM execution error")
	}

	if rpcErr.Code == ganacheExecutionError && strings.HasPrefix(rpcErr.Message, ganacheRevertMessage) {
		return CallResult{Reverted: true, Reason: rpcErr.Message}, nil
	}

	return CallResult{}, indexerrors.New(indexerrors.KindPossibleReorg, "hostexports: unidentified RPC error: "+rpcErr.Message)
}

// decodeParityRevertReason hex-decodes the Reverted 0x... payload and,
// if it encodes Solidity's Error(string) selector, ABI-decodes the
// reason string.
func decodeParityRevertReason(hexPayload string) string {
	payload, err := hexDecode(hexPayload)
	if err != nil || len(payload) < 4 {
		return "no reason"
	}
	if string(payload[:4]) != string(revertSelector) {
		return "no reason"
	}
	args := abi.Arguments{{Type: mustStringType()}}
	values, err := args.Unpack(payload[4:])
	if err != nil || len(values) == 0 {
		return "no reason"
	}
	s, ok := values[0].(string)
	if !ok {
		return "no reason"
	}
	return s
}

func hexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return decodeHexString(s)
}

func mustStringType() abi.Type {
	t, _ := abi.NewType("string", "", nil)
	return t
}

// UnresolvedCall names a pending contract call before ABI resolution
// (spec §4.6 ethereum.call).
type UnresolvedCall struct {
	ContractName     string
	ContractAddress  []byte
	FunctionName     string
	FunctionSignature string // disambiguates overloads when non-empty
	Args             []interface{}
}

// CallCacheKey is the (contract_address, encoded_call, block_ptr) cache
// key spec §4.6 specifies for memoizing contract calls.
type CallCacheKey struct {
	ContractAddress string
	EncodedCall     string
	BlockNumber     int32
}

// CallCache memoizes contract call results within a block's handler
// run. Not safe across blocks: a new Bridge gets a fresh CallCache.
type CallCache struct {
	entries map[CallCacheKey]CallResult
}

func NewCallCache() *CallCache { return &CallCache{entries: map[CallCacheKey]CallResult{}} }

func (c *CallCache) Get(key CallCacheKey) (CallResult, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *CallCache) Put(key CallCacheKey, result CallResult) {
	c.entries[key] = result
}

// EthCaller performs the actual JSON-RPC eth_call; implemented by the
// chain reader client, injected so this package stays transport-
// agnostic and testable.
type EthCaller interface {
	Call(ctx context.Context, to []byte, data []byte, gas uint64, block int32) ([]byte, *RPCError, error)
}

// ABIResolver resolves a contract name (and optional function
// signature) to the ABI needed to encode a call and decode its result.
type ABIResolver interface {
	Resolve(contractName string) (abi.ABI, bool)
}

// CallContractOptions carries the environment-driven knobs of spec §6.5.
type CallContractOptions struct {
	GasCap        uint64
	MaxRetries    int
	RetrySpacing  time.Duration
}

// DefaultCallContractOptions mirrors ETH_CALL_GAS's documented default
// and the bounded backoff spec §4.6 describes ("up to 10 attempts,
// 100ms spacing").
func DefaultCallContractOptions() CallContractOptions {
	return CallContractOptions{GasCap: 25_000_000, MaxRetries: 10, RetrySpacing: 100 * time.Millisecond}
}

// CallContract implements spec §4.6's ethereum.call semantics: resolve
// the ABI, encode, call (with cache + bounded retry on indeterminate
// RPC faults), decode, returning Ok(None) on revert.
func CallContract(ctx context.Context, caller EthCaller, resolver ABIResolver, cache *CallCache, call UnresolvedCall, opts CallContractOptions, block int32) ([]interface{}, error) {
	contractABI, ok := resolver.Resolve(call.ContractName)
	if !ok {
		return nil, indexerrors.New(indexerrors.KindDeterministic, "hostexports: unknown contract "+call.ContractName)
	}
	method, err := resolveMethod(contractABI, call)
	if err != nil {
		return nil, err
	}
	encoded, err := method.Inputs.Pack(call.Args...)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindDeterministic, err, "hostexports: encoding contract call arguments")
	}
	data := append(append([]byte{}, method.ID...), encoded...)

	key := CallCacheKey{ContractAddress: BytesToHex(call.ContractAddress), EncodedCall: BytesToHex(data), BlockNumber: block}
	if cached, ok := cache.Get(key); ok {
		if cached.Reverted {
			return nil, nil
		}
		return method.Outputs.Unpack(cached.Result)
	}

	retries := uint64(0)
	if opts.MaxRetries > 1 {
		retries = uint64(opts.MaxRetries - 1)
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.RetrySpacing), retries)

	var result CallResult
	op := func() error {
		raw, rpcErr, callErr := caller.Call(ctx, call.ContractAddress, data, opts.GasCap, block)
		if callErr != nil {
			return callErr
		}
		if len(raw) == 0 && rpcErr == nil {
			// Empty 0x response with no explicit error is itself a revert
			// (spec §4.6).
			result = CallResult{Reverted: true, Reason: "empty response"}
			return nil
		}
		if rpcErr != nil {
			cr, classifyErr := ClassifyCallError(rpcErr)
			if classifyErr != nil {
				return classifyErr
			}
			result = cr
			return nil
		}
		result = CallResult{Result: raw}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		if indexerrors.Classify(err) == indexerrors.KindFatal {
			// A raw transport error never passed through ClassifyCallError
			// is still a chain-node-side fault, not a local invariant
			// violation: surface it as PossibleReorg, not Fatal.
			return nil, indexerrors.Wrap(indexerrors.KindPossibleReorg, err, "hostexports: eth_call exhausted retries")
		}
		return nil, err
	}

	cache.Put(key, result)
	if result.Reverted {
		return nil, nil
	}
	return method.Outputs.Unpack(result.Result)
}

func resolveMethod(contractABI abi.ABI, call UnresolvedCall) (abi.Method, error) {
	if call.FunctionSignature != "" {
		for _, m := range contractABI.Methods {
			if m.Sig == call.FunctionSignature {
				return m, nil
			}
		}
		return abi.Method{}, indexerrors.New(indexerrors.KindDeterministic, "hostexports: no method matches signature "+call.FunctionSignature)
	}
	m, ok := contractABI.Methods[call.FunctionName]
	if !ok {
		return abi.Method{}, indexerrors.New(indexerrors.KindDeterministic, "hostexports: unknown function "+call.FunctionName)
	}
	return m, nil
}

// decodeHexString is a tiny local hex decoder kept free of an extra
// import alias collision with the package-level "hex" name used in
// convert.go.
func decodeHexString(s string) ([]byte, error) {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	default:
		return 0, indexerrors.New(indexerrors.KindDeterministic, "hostexports: invalid hex digit")
	}
}
