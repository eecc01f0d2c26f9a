// Package sim answers quoter calldata locally by simulating swaps over a
// pool snapshot. It behaves like a node running QuoterV2 and
// MixedRouteQuoterV1 at the snapshot's block.
package sim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv2calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2/calculator"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	uniswapv3calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/calculator"
	quoterabi "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/quoter"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/quoter"
	"github.com/ethereum/go-ethereum/common"
)

// Default execution costs, roughly what QuoterV2 burns on mainnet.
const (
	DefaultCallGas uint64 = 60_000
	DefaultHopGas  uint64 = 80_000
	DefaultTickGas uint64 = 30_000
)

// Option configures an Executor.
type Option interface {
	apply(*Executor)
}

type funcOption func(*Executor)

func (f funcOption) apply(e *Executor) {
	f(e)
}

func newOption(f func(*Executor)) Option {
	return funcOption(f)
}

// WithGasModel overrides the simulated execution cost of a call.
func WithGasModel(perCall, perHop, perTick uint64) Option {
	return newOption(func(e *Executor) {
		e.callGas, e.hopGas, e.tickGas = perCall, perHop, perTick
	})
}

// WithBatchGasLimit fails a whole batch whose summed gas exceeds limit, the
// way a node caps a multicall. Zero disables the check.
func WithBatchGasLimit(limit uint64) Option {
	return newOption(func(e *Executor) {
		e.batchGasLimit = limit
	})
}

type pairKey struct {
	a, b common.Address
}

func keyOf(x, y common.Address) pairKey {
	if x.Cmp(y) > 0 {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

type v3Key struct {
	pair pairKey
	fee  uint32
}

// Executor implements quoter.BatchExecutor over a fixed pool set. It is
// safe for concurrent use; the set is never mutated.
type Executor struct {
	set *poolset.Set
	v2  map[pairKey]uniswapv2.Pool
	v3  map[v3Key]uniswapv3.Pool

	callGas, hopGas, tickGas uint64
	batchGasLimit            uint64
}

// New indexes the pools a quoter path can address, see
// poolset.Set.QuotablePools.
func New(set *poolset.Set, opts ...Option) *Executor {
	e := &Executor{
		set:     set,
		v2:      make(map[pairKey]uniswapv2.Pool),
		v3:      make(map[v3Key]uniswapv3.Pool),
		callGas: DefaultCallGas,
		hopGas:  DefaultHopGas,
		tickGas: DefaultTickGas,
	}
	for _, opt := range opts {
		opt.apply(e)
	}
	v2, v3 := set.QuotablePools()
	for _, p := range v2 {
		e.v2[keyOf(p.Token0.Address, p.Token1.Address)] = p
	}
	for _, p := range v3 {
		e.v3[v3Key{pair: keyOf(p.Token0.Address, p.Token1.Address), fee: p.Fee}] = p
	}
	return e
}

// ExecuteBatch implements quoter.BatchExecutor. A zero blockNumber means the
// snapshot's own block.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []quoter.RawCall, blockNumber uint64) ([]quoter.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if blockNumber != 0 && blockNumber != e.set.BlockNumber() {
		return nil, fmt.Errorf("%w: snapshot is at block %d, call asked for %d", routing.ErrStaleBlockHeight, e.set.BlockNumber(), blockNumber)
	}

	results := make([]quoter.RawResult, len(calls))
	var batchGas uint64
	for i, c := range calls {
		data, used, err := e.call(c)
		batchGas += used
		if err != nil {
			results[i] = quoter.RawResult{Err: err}
			continue
		}
		results[i] = quoter.RawResult{Data: data}
	}
	if e.batchGasLimit > 0 && batchGas > e.batchGasLimit {
		return nil, fmt.Errorf("%w: batch used %d gas, limit %d", quoter.ErrGasCeilingExceeded, batchGas, e.batchGasLimit)
	}
	return results, nil
}

// call runs one quote and reports the gas it would have used.
func (e *Executor) call(c quoter.RawCall) ([]byte, uint64, error) {
	method, path, amount, err := quoterabi.UnpackQuoteCall(c.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", quoter.ErrExecutionReverted, err)
	}
	tokens, fees, err := quoterabi.DecodePath(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", quoter.ErrExecutionReverted, err)
	}

	var res quoterabi.Result
	if method == quoterabi.MethodQuoteExactInput {
		res, err = e.exactInput(tokens, fees, amount)
	} else {
		res, err = e.exactOutput(tokens, fees, amount)
	}
	used := e.callGas + uint64(len(fees))*e.hopGas + res.TicksCrossed()*e.tickGas
	if err != nil {
		return nil, used, fmt.Errorf("%w: %v", quoter.ErrExecutionReverted, err)
	}
	if c.Gas > 0 && used > c.Gas {
		return nil, c.Gas, fmt.Errorf("%w: needs %d, allowed %d", quoter.ErrGasCeilingExceeded, used, c.Gas)
	}
	res.GasEstimate = new(big.Int).SetUint64(used)
	data, err := quoterabi.PackResult(method, res)
	if err != nil {
		return nil, used, fmt.Errorf("%w: %v", quoter.ErrExecutionReverted, err)
	}
	return data, used, nil
}

// step quotes one hop. For exact input amount is what goes in, for exact
// output it is what must come out.
func (e *Executor) step(tokenIn, tokenOut common.Address, fee uint32, amount *big.Int, exactIn bool) (next, sqrtAfter *big.Int, ticks uint32, err error) {
	if fee == quoterabi.MixedV2Fee {
		pool, ok := e.v2[keyOf(tokenIn, tokenOut)]
		if !ok {
			return nil, nil, 0, fmt.Errorf("no constant-product pool for %s/%s", tokenIn.Hex(), tokenOut.Hex())
		}
		if exactIn {
			next, err = uniswapv2calculator.GetAmountOut(amount, tokenIn, tokenOut, pool)
		} else {
			next, err = uniswapv2calculator.GetAmountIn(amount, tokenIn, tokenOut, pool)
		}
		// V2 hops report a zero price, as MixedRouteQuoterV1 does.
		return next, new(big.Int), 0, err
	}

	pool, ok := e.v3[v3Key{pair: keyOf(tokenIn, tokenOut), fee: fee}]
	if !ok {
		return nil, nil, 0, fmt.Errorf("no pool for %s/%s at fee %d", tokenIn.Hex(), tokenOut.Hex(), fee)
	}
	var sr uniswapv3calculator.SwapResult
	if exactIn {
		sr, err = uniswapv3calculator.QuoteExactInput(amount, nil, tokenIn, pool)
	} else {
		sr, err = uniswapv3calculator.QuoteExactOutput(amount, nil, tokenIn, pool)
	}
	if err != nil {
		return nil, nil, 0, err
	}
	return sr.Amount, sr.SqrtPriceX96After, sr.InitializedTicksCrossed, nil
}

// exactInput walks tokens[0] -> tokens[n].
func (e *Executor) exactInput(tokens []common.Address, fees []uint32, amountIn *big.Int) (quoterabi.Result, error) {
	res := quoterabi.Result{
		SqrtPriceX96AfterList:       make([]*big.Int, len(fees)),
		InitializedTicksCrossedList: make([]uint32, len(fees)),
	}
	amount := amountIn
	for i, fee := range fees {
		next, sqrt, ticks, err := e.step(tokens[i], tokens[i+1], fee, amount, true)
		if err != nil {
			return res, fmt.Errorf("hop %d: %w", i, err)
		}
		if next.Sign() == 0 {
			return res, fmt.Errorf("hop %d: zero output", i)
		}
		res.SqrtPriceX96AfterList[i] = sqrt
		res.InitializedTicksCrossedList[i] = ticks
		amount = next
	}
	res.Amount = amount
	return res, nil
}

// exactOutput takes a reversed path, tokens[0] being the token bought, and
// walks it in that order.
func (e *Executor) exactOutput(tokens []common.Address, fees []uint32, amountOut *big.Int) (quoterabi.Result, error) {
	res := quoterabi.Result{
		SqrtPriceX96AfterList:       make([]*big.Int, len(fees)),
		InitializedTicksCrossedList: make([]uint32, len(fees)),
	}
	amount := amountOut
	for i, fee := range fees {
		prev, sqrt, ticks, err := e.step(tokens[i+1], tokens[i], fee, amount, false)
		if err != nil {
			return res, fmt.Errorf("hop %d: %w", i, err)
		}
		res.SqrtPriceX96AfterList[i] = sqrt
		res.InitializedTicksCrossedList[i] = ticks
		amount = prev
	}
	res.Amount = amount
	return res, nil
}
