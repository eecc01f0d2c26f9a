package uniswapv3

import (
	"math/big"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
)

// TickInfo is an initialized tick. Presence in Pool.Ticks implies initialization.
type TickInfo struct {
	Index          int64    `json:"index"`
	LiquidityGross *big.Int `json:"liquidityGross"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
}

// Pool is a concentrated-liquidity pool at a fixed block. Ticks must be
// sorted by Index ascending.
type Pool struct {
	Address      common.Address      `json:"address"`
	Token0       tokenregistry.Token `json:"token0"`
	Token1       tokenregistry.Token `json:"token1"`
	Fee          uint32              `json:"fee"` // pips, i.e 3000 for 0.3%
	TickSpacing  int32               `json:"tickSpacing"`
	Tick         int64               `json:"tick"`
	Liquidity    *big.Int            `json:"liquidity"`
	SqrtPriceX96 *big.Int            `json:"sqrtPriceX96"`
	Ticks        []TickInfo          `json:"ticks"`
}

// Involves reports whether the token is token0 or token1.
func (p Pool) Involves(token common.Address) bool {
	return p.Token0.Address == token || p.Token1.Address == token
}

// Other returns the token on the opposite side of the given one.
func (p Pool) Other(token common.Address) (tokenregistry.Token, bool) {
	switch token {
	case p.Token0.Address:
		return p.Token1, true
	case p.Token1.Address:
		return p.Token0, true
	}
	return tokenregistry.Token{}, false
}

// HasLiquidity reports whether the pool has an initialized price and in-range liquidity.
func (p Pool) HasLiquidity() bool {
	return p.Liquidity != nil && p.SqrtPriceX96 != nil && p.Liquidity.Sign() > 0 && p.SqrtPriceX96.Sign() > 0
}
