package v3math

import (
	"fmt"
	"math/big"
)

// FeeDenominator is one million pips, i.e. 100%.
const FeeDenominator = 1_000_000

// Step is the outcome of swapping inside a single initialized tick range.
type Step struct {
	SqrtPriceNextX96 *big.Int
	AmountIn         *big.Int
	AmountOut        *big.Int
	FeeAmount        *big.Int
}

// ComputeStep swaps from sqrtCurrent toward sqrtTarget at constant
// liquidity. A non-negative amountRemaining is an exact input budget, a
// negative one an exact output request. The direction follows the two prices:
// a target at or below the current price sells token0.
func ComputeStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining *big.Int, feePips uint32) (Step, error) {
	if feePips >= FeeDenominator {
		return Step{}, fmt.Errorf("%w: %d", ErrFeeOutOfRange, feePips)
	}
	zeroForOne := sqrtCurrent.Cmp(sqrtTarget) >= 0
	exactIn := amountRemaining.Sign() >= 0
	fee := big.NewInt(int64(feePips))
	keep := big.NewInt(FeeDenominator - int64(feePips))
	denom := big.NewInt(FeeDenominator)

	var (
		next      *big.Int
		amountIn  = new(big.Int)
		amountOut = new(big.Int)
		err       error
	)

	// how much the full move to the target would take, then where the price lands
	wanted := new(big.Int).Neg(amountRemaining)
	if exactIn {
		afterFee := mulDiv(amountRemaining, keep, denom)
		if amountIn, err = inputFor(sqrtTarget, sqrtCurrent, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
		if afterFee.Cmp(amountIn) >= 0 {
			next = new(big.Int).Set(sqrtTarget)
		} else if next, err = NextSqrtPriceFromInput(sqrtCurrent, liquidity, afterFee, zeroForOne); err != nil {
			return Step{}, err
		}
	} else {
		if amountOut, err = outputFor(sqrtTarget, sqrtCurrent, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
		if wanted.Cmp(amountOut) >= 0 {
			next = new(big.Int).Set(sqrtTarget)
		} else if next, err = NextSqrtPriceFromOutput(sqrtCurrent, liquidity, wanted, zeroForOne); err != nil {
			return Step{}, err
		}
	}

	// amounts for the move that actually happened
	reached := next.Cmp(sqrtTarget) == 0
	if !reached || !exactIn {
		if amountIn, err = inputFor(next, sqrtCurrent, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
	}
	if !reached || exactIn {
		if amountOut, err = outputFor(next, sqrtCurrent, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
	}
	if !exactIn && amountOut.Cmp(wanted) > 0 {
		amountOut.Set(wanted)
	}

	var feeAmount *big.Int
	if exactIn && !reached {
		// the range absorbed the whole budget; whatever is not input is fee
		feeAmount = new(big.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount = mulDivUp(amountIn, fee, keep)
	}

	return Step{
		SqrtPriceNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        feeAmount,
	}, nil
}

// inputFor is the input owed for moving the price from current to to, rounded up.
func inputFor(to, current, liquidity *big.Int, zeroForOne bool) (*big.Int, error) {
	if zeroForOne {
		return Amount0Delta(to, current, liquidity, true)
	}
	return Amount1Delta(current, to, liquidity, true), nil
}

// outputFor is the output paid for moving the price from current to to, rounded down.
func outputFor(to, current, liquidity *big.Int, zeroForOne bool) (*big.Int, error) {
	if zeroForOne {
		return Amount1Delta(to, current, liquidity, false), nil
	}
	return Amount0Delta(current, to, liquidity, false)
}
