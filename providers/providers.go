// Package providers supplies the router with pools, gas prices, token
// transfer taxes and the chain head. Decorators wrap an inner provider they
// own; every layer enforces the block height it was asked for.
package providers

import (
	"context"
	"math/big"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
)

// PoolProvider returns the pools touching pairs at block. A zero block means
// the provider's latest view; the returned set carries the block it is at.
type PoolProvider interface {
	GetPools(ctx context.Context, pairs []poolset.TokenPair, block uint64) (*poolset.Set, error)
}

// GasPriceProvider returns the gas price in wei.
type GasPriceProvider interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// TokenFeeProvider returns transfer taxes for the tokens that have one.
// Tokens missing from the map are untaxed.
type TokenFeeProvider interface {
	GetTokenFees(ctx context.Context, tokens []common.Address) (map[common.Address]tokenregistry.TransferFee, error)
}

// BlockProvider returns the current chain head.
type BlockProvider interface {
	BlockNumber(ctx context.Context) (uint64, error)
}
