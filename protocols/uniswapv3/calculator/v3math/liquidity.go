package v3math

import (
	"errors"
	"math/big"
)

var (
	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")

	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// AddDelta applies a signed net liquidity change, keeping the result a uint128.
func AddDelta(liquidity, delta *big.Int) (*big.Int, error) {
	next := new(big.Int).Add(liquidity, delta)
	switch {
	case next.Sign() < 0:
		return nil, ErrLiquidityUnderflow
	case next.Cmp(maxUint128) > 0:
		return nil, ErrLiquidityOverflow
	}
	return next, nil
}
