// Package quoter encodes and decodes calls to the Uniswap QuoterV2 and
// MixedRouteQuoterV1 contracts. Both expose quoteExactInput with the same
// selector, so a call is routed to one or the other by target address only.
package quoter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodQuoteExactInput  = "quoteExactInput"
	MethodQuoteExactOutput = "quoteExactOutput"

	// MixedV2Fee marks a constant-product hop inside a mixed-route path.
	MixedV2Fee uint32 = 0x800000

	addrSize = common.AddressLength
	feeSize  = 3
)

const quoterABI = `[
  {"inputs":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"uint256","name":"amountIn","type":"uint256"}],
   "name":"quoteExactInput",
   "outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"},{"internalType":"uint32[]","name":"initializedTicksCrossedList","type":"uint32[]"},{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"uint256","name":"amountOut","type":"uint256"}],
   "name":"quoteExactOutput",
   "outputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"},{"internalType":"uint32[]","name":"initializedTicksCrossedList","type":"uint32[]"},{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"}
]`

var (
	ErrInvalidPath     = errors.New("invalid quoter path")
	ErrUnknownMethod   = errors.New("unknown quoter method")
	ErrMalformedResult = errors.New("malformed quoter result")

	parsedABI abi.ABI
)

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(quoterABI))
	if err != nil {
		panic(fmt.Sprintf("quoter: failed to parse ABI: %v", err))
	}
}

// Result is the decoded return value of either quote method.
type Result struct {
	// Amount is amountOut for quoteExactInput and amountIn for quoteExactOutput.
	Amount                      *big.Int
	SqrtPriceX96AfterList       []*big.Int
	InitializedTicksCrossedList []uint32
	GasEstimate                 *big.Int
}

// TicksCrossed sums the per-pool tick crossing counts.
func (r Result) TicksCrossed() uint64 {
	var n uint64
	for _, c := range r.InitializedTicksCrossedList {
		n += uint64(c)
	}
	return n
}

// EncodePath packs token/fee pairs as token0 | fee0 | token1 | fee1 | token2 ...
// len(fees) must be len(tokens)-1.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens with %d fees", ErrInvalidPath, len(tokens), len(fees))
	}
	out := make([]byte, 0, len(tokens)*addrSize+len(fees)*feeSize)
	var fee [4]byte
	for i, t := range tokens {
		out = append(out, t.Bytes()...)
		if i < len(fees) {
			if fees[i] > 0xffffff {
				return nil, fmt.Errorf("%w: fee %d does not fit in uint24", ErrInvalidPath, fees[i])
			}
			binary.BigEndian.PutUint32(fee[:], fees[i])
			out = append(out, fee[1:]...)
		}
	}
	return out, nil
}

// DecodePath is the inverse of EncodePath.
func DecodePath(path []byte) (tokens []common.Address, fees []uint32, err error) {
	if len(path) < 2*addrSize+feeSize || (len(path)-addrSize)%(addrSize+feeSize) != 0 {
		return nil, nil, fmt.Errorf("%w: length %d", ErrInvalidPath, len(path))
	}
	hops := (len(path) - addrSize) / (addrSize + feeSize)
	tokens = make([]common.Address, 0, hops+1)
	fees = make([]uint32, 0, hops)
	offset := 0
	for i := 0; i < hops; i++ {
		tokens = append(tokens, common.BytesToAddress(path[offset:offset+addrSize]))
		offset += addrSize
		f := path[offset : offset+feeSize]
		fees = append(fees, uint32(f[0])<<16|uint32(f[1])<<8|uint32(f[2]))
		offset += feeSize
	}
	tokens = append(tokens, common.BytesToAddress(path[offset:offset+addrSize]))
	return tokens, fees, nil
}

// ReversePath flips a token/fee path; exact output paths are encoded from
// the output token back to the input token.
func ReversePath(tokens []common.Address, fees []uint32) ([]common.Address, []uint32) {
	rt := make([]common.Address, len(tokens))
	for i, t := range tokens {
		rt[len(tokens)-1-i] = t
	}
	rf := make([]uint32, len(fees))
	for i, f := range fees {
		rf[len(fees)-1-i] = f
	}
	return rt, rf
}

// PackQuote builds calldata for quoteExactInput or quoteExactOutput.
func PackQuote(method string, path []byte, amount *big.Int) ([]byte, error) {
	if method != MethodQuoteExactInput && method != MethodQuoteExactOutput {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return parsedABI.Pack(method, path, amount)
}

// UnpackQuoteCall decodes calldata produced by PackQuote.
func UnpackQuoteCall(data []byte) (method string, path []byte, amount *big.Int, err error) {
	if len(data) < 4 {
		return "", nil, nil, fmt.Errorf("%w: calldata too short", ErrUnknownMethod)
	}
	m, err := parsedABI.MethodById(data[:4])
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", ErrUnknownMethod, err)
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, nil, err
	}
	if len(args) != 2 {
		return "", nil, nil, fmt.Errorf("%w: expected 2 arguments, got %d", ErrUnknownMethod, len(args))
	}
	path, ok1 := args[0].([]byte)
	amount, ok2 := args[1].(*big.Int)
	if !ok1 || !ok2 {
		return "", nil, nil, fmt.Errorf("%w: unexpected argument types", ErrUnknownMethod)
	}
	return m.Name, path, amount, nil
}

// PackResult encodes a Result as the given method's return data.
func PackResult(method string, r Result) ([]byte, error) {
	m, ok := parsedABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	gas := r.GasEstimate
	if gas == nil {
		gas = new(big.Int)
	}
	sqrt := r.SqrtPriceX96AfterList
	if sqrt == nil {
		sqrt = []*big.Int{}
	}
	ticks := r.InitializedTicksCrossedList
	if ticks == nil {
		ticks = []uint32{}
	}
	return m.Outputs.Pack(r.Amount, sqrt, ticks, gas)
}

// UnpackResult decodes the return data of a quote call.
func UnpackResult(method string, data []byte) (Result, error) {
	values, err := parsedABI.Unpack(method, data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if len(values) != 4 {
		return Result{}, fmt.Errorf("%w: expected 4 values, got %d", ErrMalformedResult, len(values))
	}
	amount, ok1 := values[0].(*big.Int)
	sqrt, ok2 := values[1].([]*big.Int)
	ticks, ok3 := values[2].([]uint32)
	gas, ok4 := values[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Result{}, fmt.Errorf("%w: unexpected value types", ErrMalformedResult)
	}
	return Result{
		Amount:                      amount,
		SqrtPriceX96AfterList:       sqrt,
		InitializedTicksCrossedList: ticks,
		GasEstimate:                 gas,
	}, nil
}
