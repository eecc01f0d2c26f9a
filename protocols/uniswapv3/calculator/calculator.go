package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/calculator/v3math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrTokenMismatch         = errors.New("token mismatch")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for exact output")

	Q96 = v3math.Q96
)

// SwapResult is what a quoter reports for a single-pool swap.
type SwapResult struct {
	// Amount is the output for an exact-input swap and the required input
	// for an exact-output swap.
	Amount                  *big.Int
	SqrtPriceX96After       *big.Int
	TickAfter               int64
	InitializedTicksCrossed uint32
}

// swapState holds the running state and scratch values of one simulation.
type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int64
	liquidity                *big.Int
	ticksCrossed             uint32

	sqrtPriceStartX96 *big.Int
	targetPrice       *big.Int
	liquidityNet      *big.Int
}

var swapStatePool = sync.Pool{
	New: func() any {
		return &swapState{
			amountSpecifiedRemaining: new(big.Int),
			amountCalculated:         new(big.Int),
			sqrtPriceX96:             new(big.Int),
			liquidity:                new(big.Int),
			sqrtPriceStartX96:        new(big.Int),
			targetPrice:              new(big.Int),
			liquidityNet:             new(big.Int),
		}
	},
}

func (s *swapState) reset(amountSpecified *big.Int, pool uniswapv3.Pool) {
	s.amountSpecifiedRemaining.Set(amountSpecified)
	s.amountCalculated.SetInt64(0)
	s.sqrtPriceX96.Set(pool.SqrtPriceX96)
	s.tick = pool.Tick
	s.liquidity.Set(pool.Liquidity)
	s.ticksCrossed = 0
}

// swap runs the tick-by-tick simulation. A positive amountSpecifiedRemaining
// means exact input, a negative one exact output.
func swap(state *swapState, pool uniswapv3.Pool, sqrtPriceLimitX96 *big.Int, zeroForOne bool) error {
	if sqrtPriceLimitX96 == nil {
		if zeroForOne {
			sqrtPriceLimitX96 = new(big.Int).Add(v3math.MinSqrtRatio, big.NewInt(1))
		} else {
			sqrtPriceLimitX96 = new(big.Int).Sub(v3math.MaxSqrtRatio, big.NewInt(1))
		}
	}

	exactInput := state.amountSpecifiedRemaining.Sign() > 0

	for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimitX96) != 0 {
		state.sqrtPriceStartX96.Set(state.sqrtPriceX96)

		tickNext, initialized := v3math.NextInitializedTick(pool.Ticks, state.tick, zeroForOne)
		if !initialized {
			break
		}
		tickNext = max(v3math.MinTick, min(tickNext, v3math.MaxTick))

		sqrtPriceNextX96, err := v3math.SqrtRatioAtTick(tickNext)
		if err != nil {
			return err
		}

		if (zeroForOne && sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0) ||
			(!zeroForOne && sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0) {
			state.targetPrice.Set(sqrtPriceLimitX96)
		} else {
			state.targetPrice.Set(sqrtPriceNextX96)
		}

		step, err := v3math.ComputeStep(state.sqrtPriceStartX96, state.targetPrice, state.liquidity, state.amountSpecifiedRemaining, pool.Fee)
		if err != nil {
			break // zero liquidity in range
		}
		state.sqrtPriceX96.Set(step.SqrtPriceNextX96)

		spent := new(big.Int).Add(step.AmountIn, step.FeeAmount)
		if exactInput {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, spent)
			state.amountCalculated.Add(state.amountCalculated, step.AmountOut)
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, step.AmountOut)
			state.amountCalculated.Add(state.amountCalculated, spent)
		}

		if state.sqrtPriceX96.Cmp(sqrtPriceNextX96) == 0 {
			if info, ok := v3math.TickAt(pool.Ticks, tickNext); ok && info.LiquidityNet != nil {
				state.ticksCrossed++
				state.liquidityNet.Set(info.LiquidityNet)
				if zeroForOne {
					state.liquidityNet.Neg(state.liquidityNet)
				}
				next, err := v3math.AddDelta(state.liquidity, state.liquidityNet)
				if errors.Is(err, v3math.ErrLiquidityUnderflow) {
					break
				}
				if err != nil {
					return err
				}
				state.liquidity.Set(next)
			}
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if state.sqrtPriceX96.Cmp(state.sqrtPriceStartX96) != 0 {
			state.tick, err = v3math.TickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func direction(tokenIn common.Address, pool uniswapv3.Pool) (zeroForOne bool, err error) {
	switch tokenIn {
	case pool.Token0.Address:
		return true, nil
	case pool.Token1.Address:
		return false, nil
	}
	return false, fmt.Errorf("%w: token %s is not in pool %s", ErrTokenMismatch, tokenIn.Hex(), pool.Address.Hex())
}

func validPool(pool uniswapv3.Pool) error {
	if !pool.HasLiquidity() {
		return fmt.Errorf("%w: pool %s has no active liquidity", ErrInsufficientLiquidity, pool.Address.Hex())
	}
	return nil
}

// QuoteExactInput simulates selling amountIn of tokenIn. Like the on-chain
// quoter, a swap that runs out of initialized ticks returns the partial output.
func QuoteExactInput(amountIn, sqrtPriceLimitX96 *big.Int, tokenIn common.Address, pool uniswapv3.Pool) (SwapResult, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return SwapResult{}, ErrInvalidAmount
	}
	zeroForOne, err := direction(tokenIn, pool)
	if err != nil {
		return SwapResult{}, err
	}
	if err := validPool(pool); err != nil {
		return SwapResult{}, err
	}

	state := swapStatePool.Get().(*swapState)
	defer swapStatePool.Put(state)
	state.reset(amountIn, pool)

	if err := swap(state, pool, sqrtPriceLimitX96, zeroForOne); err != nil {
		return SwapResult{}, err
	}
	return state.result(), nil
}

// QuoteExactOutput simulates buying amountOut of the token opposite tokenIn.
// It fails when the pool cannot deliver the full amount.
func QuoteExactOutput(amountOut, sqrtPriceLimitX96 *big.Int, tokenIn common.Address, pool uniswapv3.Pool) (SwapResult, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return SwapResult{}, ErrInvalidAmount
	}
	zeroForOne, err := direction(tokenIn, pool)
	if err != nil {
		return SwapResult{}, err
	}
	if err := validPool(pool); err != nil {
		return SwapResult{}, err
	}

	state := swapStatePool.Get().(*swapState)
	defer swapStatePool.Put(state)
	state.reset(new(big.Int).Neg(amountOut), pool)

	if err := swap(state, pool, sqrtPriceLimitX96, zeroForOne); err != nil {
		return SwapResult{}, err
	}
	if state.amountSpecifiedRemaining.Sign() != 0 {
		return SwapResult{}, fmt.Errorf("%w: pool %s short by %s", ErrInsufficientLiquidity, pool.Address.Hex(), new(big.Int).Neg(state.amountSpecifiedRemaining))
	}
	return state.result(), nil
}

func (s *swapState) result() SwapResult {
	return SwapResult{
		Amount:                  new(big.Int).Set(s.amountCalculated),
		SqrtPriceX96After:       new(big.Int).Set(s.sqrtPriceX96),
		TickAfter:               s.tick,
		InitializedTicksCrossed: s.ticksCrossed,
	}
}

// GetAmountOut is QuoteExactInput without the price limit and side data.
func GetAmountOut(amountIn *big.Int, tokenIn common.Address, pool uniswapv3.Pool) (*big.Int, error) {
	res, err := QuoteExactInput(amountIn, nil, tokenIn, pool)
	if err != nil {
		return nil, err
	}
	return res.Amount, nil
}

// GetVirtualReserves returns the virtual reserves implied by the current
// price and in-range liquidity, ordered for tokenIn -> tokenOut.
func GetVirtualReserves(tokenIn, tokenOut common.Address, pool uniswapv3.Pool) (reserveIn, reserveOut *big.Int, err error) {
	if !((tokenIn == pool.Token0.Address && tokenOut == pool.Token1.Address) || (tokenIn == pool.Token1.Address && tokenOut == pool.Token0.Address)) {
		return nil, nil, fmt.Errorf("%w: provided tokens do not match pool tokens", ErrTokenMismatch)
	}
	if !pool.HasLiquidity() {
		return new(big.Int), new(big.Int), nil
	}

	reserve0 := new(big.Int).Quo(new(big.Int).Lsh(pool.Liquidity, 96), pool.SqrtPriceX96)
	reserve1 := new(big.Int).Quo(new(big.Int).Mul(pool.Liquidity, pool.SqrtPriceX96), Q96)

	if tokenIn == pool.Token0.Address {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}
