package v3math

import (
	"errors"
	"math/big"
)

var (
	// Q96 is 1.0 in Q64.96.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	ErrLiquidityZero    = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero    = errors.New("sqrt price must be greater than zero")
	ErrPriceUnderflow   = errors.New("amount exceeds the reserves at this price")
	ErrFeeOutOfRange    = errors.New("fee must be below one million pips")
	errNegativeQuantity = errors.New("negative quantity")
)

func mulDiv(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, c)
}

func mulDivUp(a, b, c *big.Int) *big.Int {
	return divUp(new(big.Int).Mul(a, b), c)
}

func divUp(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func ordered(a, b *big.Int) (lo, hi *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// Amount0Delta is the token0 amount between two sqrt prices at liquidity L:
// L * 2^96 * (hi - lo) / (hi * lo).
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	lo, hi := ordered(sqrtA, sqrtB)
	if lo.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}
	num := new(big.Int).Lsh(liquidity, 96)
	diff := new(big.Int).Sub(hi, lo)
	if roundUp {
		return divUp(mulDivUp(num, diff, hi), lo), nil
	}
	t := mulDiv(num, diff, hi)
	return t.Quo(t, lo), nil
}

// Amount1Delta is the token1 amount between two sqrt prices at liquidity L:
// L * (hi - lo) / 2^96.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	lo, hi := ordered(sqrtA, sqrtB)
	diff := new(big.Int).Sub(hi, lo)
	if roundUp {
		return mulDivUp(liquidity, diff, Q96)
	}
	return mulDiv(liquidity, diff, Q96)
}

// nextFromAmount0 moves the price by a token0 amount, rounding up so the
// price never moves further than the amount pays for.
func nextFromAmount0(sqrtP, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtP), nil
	}
	num := new(big.Int).Lsh(liquidity, 96)
	product := new(big.Int).Mul(amount, sqrtP)
	if add {
		return mulDivUp(num, sqrtP, product.Add(num, product)), nil
	}
	if num.Cmp(product) <= 0 {
		return nil, ErrPriceUnderflow
	}
	return mulDivUp(num, sqrtP, product.Sub(num, product)), nil
}

// nextFromAmount1 moves the price by a token1 amount, rounding down.
func nextFromAmount1(sqrtP, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if add {
		return new(big.Int).Add(sqrtP, mulDiv(amount, Q96, liquidity)), nil
	}
	q := mulDivUp(amount, Q96, liquidity)
	if sqrtP.Cmp(q) <= 0 {
		return nil, ErrPriceUnderflow
	}
	return q.Sub(sqrtP, q), nil
}

func checkPriceInputs(sqrtP, liquidity, amount *big.Int) error {
	switch {
	case sqrtP.Sign() <= 0:
		return ErrSqrtPriceZero
	case liquidity.Sign() <= 0:
		return ErrLiquidityZero
	case amount.Sign() < 0:
		return errNegativeQuantity
	}
	return nil
}

// NextSqrtPriceFromInput is the price after adding amountIn of the input token.
func NextSqrtPriceFromInput(sqrtP, liquidity, amountIn *big.Int, zeroForOne bool) (*big.Int, error) {
	if err := checkPriceInputs(sqrtP, liquidity, amountIn); err != nil {
		return nil, err
	}
	if zeroForOne {
		return nextFromAmount0(sqrtP, liquidity, amountIn, true)
	}
	return nextFromAmount1(sqrtP, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput is the price after removing amountOut of the output token.
func NextSqrtPriceFromOutput(sqrtP, liquidity, amountOut *big.Int, zeroForOne bool) (*big.Int, error) {
	if err := checkPriceInputs(sqrtP, liquidity, amountOut); err != nil {
		return nil, err
	}
	if zeroForOne {
		return nextFromAmount1(sqrtP, liquidity, amountOut, false)
	}
	return nextFromAmount0(sqrtP, liquidity, amountOut, false)
}
