package uniswapv2

import (
	"math/big"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultFeeBps is the 0.3% swap fee of canonical V2 pairs.
const DefaultFeeBps = 30

// Pool is a constant-product pair at a fixed block. The tokens carry their
// optional fee-on-transfer metadata.
type Pool struct {
	Address  common.Address      `json:"address"`
	Token0   tokenregistry.Token `json:"token0"`
	Token1   tokenregistry.Token `json:"token1"`
	Reserve0 *big.Int            `json:"reserve0"`
	Reserve1 *big.Int            `json:"reserve1"`
	FeeBps   uint16              `json:"feeBps"` // i.e 30 for 0.3%
}

// Involves reports whether the token is one side of the pair.
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

// ReserveOf returns the pair's balance of the given token, or nil if the token
// is not in the pair.
func (p Pool) ReserveOf(token common.Address) *big.Int {
	switch token {
	case p.Token0.Address:
		return p.Reserve0
	case p.Token1.Address:
		return p.Reserve1
	}
	return nil
}

// HasLiquidity reports whether both reserves are strictly positive.
func (p Pool) HasLiquidity() bool {
	return p.Reserve0 != nil && p.Reserve1 != nil && p.Reserve0.Sign() > 0 && p.Reserve1.Sign() > 0
}
