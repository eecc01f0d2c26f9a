// Package poolsettest builds small pool sets for tests.
package poolsettest

import (
	"math/big"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/calculator/v3math"
	"github.com/ethereum/go-ethereum/common"
)

// Block is the block number of every fixture set.
const Block uint64 = 1_000

var (
	WETH = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
	USDC = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	DAI  = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI", Decimals: 18}
	WBTC = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Symbol: "WBTC", Decimals: 8}
	// TAX is a fee-on-transfer token.
	TAX = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a7a"), Symbol: "TAX", Decimals: 18}
)

// Exp10 returns n * 10^e.
func Exp10(n int64, e int64) *big.Int {
	x := new(big.Int).Exp(big.NewInt(10), big.NewInt(e), nil)
	return x.Mul(x, big.NewInt(n))
}

// Addr returns a readable fake pool address such as 0x...0101.
func Addr(n uint64) common.Address {
	return common.BigToAddress(new(big.Int).SetUint64(n))
}

// V2 builds a 0.3% pair. The tokens are ordered as given.
func V2(addr common.Address, t0, t1 tokenregistry.Token, r0, r1 *big.Int) uniswapv2.Pool {
	return uniswapv2.Pool{
		Address:  addr,
		Token0:   t0,
		Token1:   t1,
		Reserve0: new(big.Int).Set(r0),
		Reserve1: new(big.Int).Set(r1),
		FeeBps:   uniswapv2.DefaultFeeBps,
	}
}

// V3 builds a full-range pool with the given liquidity at tick.
func V3(addr common.Address, t0, t1 tokenregistry.Token, fee uint32, liquidity *big.Int, tick int64) uniswapv3.Pool {
	sqrtPrice, err := v3math.SqrtRatioAtTick(tick)
	if err != nil {
		panic(err)
	}
	return uniswapv3.Pool{
		Address:      addr,
		Token0:       t0,
		Token1:       t1,
		Fee:          fee,
		TickSpacing:  60,
		Tick:         tick,
		Liquidity:    new(big.Int).Set(liquidity),
		SqrtPriceX96: sqrtPrice,
		Ticks: []uniswapv3.TickInfo{
			{Index: -887220, LiquidityGross: new(big.Int).Set(liquidity), LiquidityNet: new(big.Int).Set(liquidity)},
			{Index: 887220, LiquidityGross: new(big.Int).Set(liquidity), LiquidityNet: new(big.Int).Neg(liquidity)},
		},
	}
}

// Set indexes the pools at Block on chain 1.
func Set(v2 []uniswapv2.Pool, v3 []uniswapv3.Pool) *poolset.Set {
	return poolset.New(poolset.Snapshot{
		ChainID: 1,
		Block:   poolset.Block{Number: Block},
		V2:      v2,
		V3:      v3,
	})
}
