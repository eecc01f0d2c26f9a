// Package gas turns a route's execution overhead into a cost in the
// trade's quote token.
package gas

import (
	"errors"
	"math/big"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2/calculator"
	uniswapv3calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/calculator"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/ethereum/go-ethereum/common"
)

// Model is the gas heuristic of one protocol.
type Model struct {
	Base    uint64 `yaml:"base" mapstructure:"base"`
	PerHop  uint64 `yaml:"per_hop" mapstructure:"per_hop"`
	PerTick uint64 `yaml:"per_tick" mapstructure:"per_tick"`
}

// Units is Base + PerHop*hops + PerTick*ticks.
func (m Model) Units(hops int, ticks uint64) uint64 {
	return m.Base + m.PerHop*uint64(hops) + m.PerTick*ticks
}

// Config holds the gas models and the pricing tokens.
type Config struct {
	V2    Model `yaml:"v2" mapstructure:"v2"`
	V3    Model `yaml:"v3" mapstructure:"v3"`
	Mixed Model `yaml:"mixed" mapstructure:"mixed"`

	// WrappedNative prices wei through its pools with the quote token.
	WrappedNative common.Address `yaml:"wrapped_native" mapstructure:"wrapped_native"`
	// GasToken, when set, also receives a parallel cost estimate.
	GasToken common.Address `yaml:"gas_token" mapstructure:"gas_token"`
}

// DefaultConfig holds the mainnet heuristics.
func DefaultConfig() Config {
	return Config{
		V2:            Model{Base: 85_000, PerHop: 50_000},
		V3:            Model{Base: 2_000, PerHop: 80_000, PerTick: 31_000},
		Mixed:         Model{Base: 2_000, PerHop: 80_000, PerTick: 31_000},
		WrappedNative: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	}
}

func (c Config) model(p routing.Protocol) Model {
	switch p {
	case routing.ProtocolV2:
		return c.V2
	case routing.ProtocolMixed:
		return c.Mixed
	}
	return c.V3
}

var oneNative = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Estimator annotates the quotes of one request. Its prices are fixed at
// construction.
type Estimator struct {
	cfg       Config
	gasPrice  *big.Int
	tradeType routing.TradeType

	// quoteRate and gasTokenRate are the token amounts one native unit buys.
	// A nil quoteRate prices gas at zero.
	quoteRate    *big.Int
	gasTokenRate *big.Int
}

// NewEstimator prices gas in quoteToken using the pools of set.
func NewEstimator(set *poolset.Set, cfg Config, gasPrice *big.Int, quoteToken tokenregistry.Token, tradeType routing.TradeType, tel routing.Telemetry) (*Estimator, error) {
	if gasPrice == nil || gasPrice.Sign() < 0 {
		return nil, errors.New("gas price must be non-negative")
	}
	e := &Estimator{
		cfg:       cfg,
		gasPrice:  new(big.Int).Set(gasPrice),
		tradeType: tradeType,
	}
	e.quoteRate = nativeRate(set, cfg.WrappedNative, quoteToken.Address)
	if e.quoteRate == nil {
		tel.Log().Warn("no pool prices gas in the quote token, gas cost ignored",
			"token", quoteToken.String(), "wrapped_native", cfg.WrappedNative.Hex())
	}
	if cfg.GasToken != (common.Address{}) {
		e.gasTokenRate = nativeRate(set, cfg.WrappedNative, cfg.GasToken)
		if e.gasTokenRate == nil {
			tel.Log().Warn("no pool prices gas in the gas token", "gas_token", cfg.GasToken.Hex())
		}
	}
	return e, nil
}

// nativeRate quotes one native unit into token through the deepest pool
// between them. It returns nil when no pool exists.
func nativeRate(set *poolset.Set, native, token common.Address) *big.Int {
	if token == native {
		return new(big.Int).Set(oneNative)
	}
	var (
		best      *big.Int
		bestDepth = new(big.Int)
	)
	consider := func(depth, out *big.Int) {
		if out == nil || out.Sign() <= 0 || depth.Cmp(bestDepth) <= 0 {
			return
		}
		bestDepth, best = depth, out
	}
	for _, p := range set.V2Pools() {
		if !p.Involves(native) || !p.Involves(token) || !p.HasLiquidity() {
			continue
		}
		out, err := uniswapv2calculator.GetAmountOut(oneNative, native, token, p)
		if err != nil {
			continue
		}
		consider(p.ReserveOf(native), out)
	}
	for _, p := range set.V3Pools() {
		if !p.Involves(native) || !p.Involves(token) || !p.HasLiquidity() {
			continue
		}
		depth, _, err := uniswapv3calculator.GetVirtualReserves(native, token, p)
		if err != nil {
			continue
		}
		out, err := uniswapv3calculator.GetAmountOut(oneNative, native, p)
		if err != nil {
			continue
		}
		consider(depth, out)
	}
	return best
}

func convert(wei, rate *big.Int) *big.Int {
	if rate == nil {
		return new(big.Int)
	}
	v := new(big.Int).Mul(wei, rate)
	return v.Quo(v, oneNative)
}

// Annotate fills the gas fields of a successful quote. Exact input quotes
// lose the cost, floored at zero; exact output quotes gain it.
func (e *Estimator) Annotate(q routing.RouteWithQuote) routing.RouteWithQuote {
	if !q.Success || q.Quote == nil {
		return q
	}
	units := e.cfg.model(q.Route.Protocol).Units(len(q.Route.Hops), q.TicksCrossed())
	wei := new(big.Int).Mul(new(big.Int).SetUint64(units), e.gasPrice)

	q.GasEstimate = units
	q.GasCostInWei = wei
	q.GasCostInToken = convert(wei, e.quoteRate)
	if e.cfg.GasToken != (common.Address{}) {
		q.GasCostInGasToken = convert(wei, e.gasTokenRate)
	}

	adjusted := new(big.Int)
	if e.tradeType == routing.ExactInput {
		adjusted.Sub(q.Quote, q.GasCostInToken)
		if adjusted.Sign() < 0 {
			adjusted.SetInt64(0)
		}
	} else {
		adjusted.Add(q.Quote, q.GasCostInToken)
	}
	q.QuoteGasAdjusted = adjusted
	return q
}

// AnnotateAll annotates every quote in place.
func (e *Estimator) AnnotateAll(routes []routing.RouteQuotes) {
	for i := range routes {
		for j := range routes[i].Quotes {
			routes[i].Quotes[j] = e.Annotate(routes[i].Quotes[j])
		}
	}
}
