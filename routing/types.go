// Package routing holds the types shared by the route generator, the quote
// engine, the gas estimator and the split optimizer.
package routing

import (
	"fmt"
	"math/big"
	"strings"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

// Protocol is the pool variant of a route.
type Protocol uint8

const (
	ProtocolV2 Protocol = iota + 1
	ProtocolV3
	ProtocolMixed
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV2:
		return "V2"
	case ProtocolV3:
		return "V3"
	case ProtocolMixed:
		return "MIXED"
	}
	return fmt.Sprintf("Protocol(%d)", uint8(p))
}

// ParseProtocol is the inverse of Protocol.String, case-insensitive.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "V2":
		return ProtocolV2, nil
	case "V3":
		return ProtocolV3, nil
	case "MIXED":
		return ProtocolMixed, nil
	}
	return 0, fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfiguration, s)
}

func (p Protocol) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Protocol) UnmarshalText(b []byte) error {
	v, err := ParseProtocol(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// TradeType says which side of the trade is fixed.
type TradeType uint8

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "exactOut"
	}
	return "exactIn"
}

// ParseTradeType accepts exactIn/exactOut in any case.
func ParseTradeType(s string) (TradeType, error) {
	switch strings.ToLower(s) {
	case "exactin", "exact_input", "in":
		return ExactInput, nil
	case "exactout", "exact_output", "out":
		return ExactOutput, nil
	}
	return 0, fmt.Errorf("%w: unknown trade type %q", ErrInvalidConfiguration, s)
}

// Hop is one pool of a route. Exactly one of V2 and V3 is set.
type Hop struct {
	V2 *uniswapv2.Pool
	V3 *uniswapv3.Pool
}

// V2Hop wraps a constant-product pool.
func V2Hop(p uniswapv2.Pool) Hop { return Hop{V2: &p} }

// V3Hop wraps a concentrated-liquidity pool.
func V3Hop(p uniswapv3.Pool) Hop { return Hop{V3: &p} }

func (h Hop) Protocol() Protocol {
	if h.V3 != nil {
		return ProtocolV3
	}
	return ProtocolV2
}

func (h Hop) Address() common.Address {
	if h.V3 != nil {
		return h.V3.Address
	}
	return h.V2.Address
}

// Other returns the token across the pool from token.
func (h Hop) Other(token common.Address) (tokenregistry.Token, bool) {
	if h.V3 != nil {
		return h.V3.Other(token)
	}
	return h.V2.Other(token)
}

// Route is an immutable path of pools from Input to Output.
// Tokens has len(Hops)+1 entries.
type Route struct {
	Protocol Protocol
	Hops     []Hop
	Tokens   []tokenregistry.Token
}

// NewRoute walks the hops starting at tokenIn and classifies the result.
func NewRoute(tokenIn tokenregistry.Token, hops []Hop) (Route, error) {
	if len(hops) == 0 {
		return Route{}, fmt.Errorf("route from %s has no hops", tokenIn)
	}
	tokens := make([]tokenregistry.Token, 0, len(hops)+1)
	tokens = append(tokens, tokenIn)
	cur := tokenIn
	var hasV2, hasV3 bool
	for _, h := range hops {
		next, ok := h.Other(cur.Address)
		if !ok {
			return Route{}, fmt.Errorf("pool %s does not contain %s", h.Address().Hex(), cur)
		}
		if h.V3 != nil {
			hasV3 = true
		} else {
			hasV2 = true
		}
		tokens = append(tokens, next)
		cur = next
	}
	r := Route{Hops: append([]Hop(nil), hops...), Tokens: tokens}
	switch {
	case hasV2 && hasV3:
		r.Protocol = ProtocolMixed
	case hasV3:
		r.Protocol = ProtocolV3
	default:
		r.Protocol = ProtocolV2
	}
	return r, nil
}

func (r Route) Input() tokenregistry.Token { return r.Tokens[0] }

func (r Route) Output() tokenregistry.Token { return r.Tokens[len(r.Tokens)-1] }

// Pools returns the pool addresses in hop order.
func (r Route) Pools() []common.Address {
	out := make([]common.Address, len(r.Hops))
	for i, h := range r.Hops {
		out[i] = h.Address()
	}
	return out
}

// ID is a stable key for the route: protocol plus the pool addresses.
func (r Route) ID() string {
	var b strings.Builder
	b.WriteString(r.Protocol.String())
	for _, h := range r.Hops {
		b.WriteByte(':')
		b.WriteString(h.Address().Hex())
	}
	return b.String()
}

// String renders the token path, e.g. "[V3] WETH -> USDC -> DAI".
func (r Route) String() string {
	syms := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		syms[i] = t.Symbol
		if syms[i] == "" {
			syms[i] = t.Address.Hex()
		}
	}
	return fmt.Sprintf("[%s] %s", r.Protocol, strings.Join(syms, " -> "))
}

// SharesPool reports whether two routes use a common pool.
func (r Route) SharesPool(o Route) bool {
	for _, a := range r.Hops {
		for _, b := range o.Hops {
			if a.Address() == b.Address() {
				return true
			}
		}
	}
	return false
}

// RouteWithQuote is a route quoted at one amount bucket.
type RouteWithQuote struct {
	Route   Route
	Percent int
	// Amount is the input (exact in) or output (exact out) of the bucket.
	Amount *big.Int
	// Quote is the output (exact in) or required input (exact out).
	Quote *big.Int

	SqrtPriceX96AfterList       []*big.Int
	InitializedTicksCrossedList []uint32
	Success                     bool
	Err                         error

	// Set by the gas estimator.
	GasEstimate       uint64
	GasCostInWei      *big.Int
	GasCostInToken    *big.Int
	GasCostInGasToken *big.Int
	QuoteGasAdjusted  *big.Int
}

// TicksCrossed sums the ticks crossed over every hop.
func (q RouteWithQuote) TicksCrossed() uint64 {
	var n uint64
	for _, c := range q.InitializedTicksCrossedList {
		n += uint64(c)
	}
	return n
}

// RouteQuotes holds one route's quotes, one per requested amount, in order.
type RouteQuotes struct {
	Route  Route
	Quotes []RouteWithQuote
}

// RouteAllocation is one leg of a SwapRoute.
type RouteAllocation struct {
	RouteWithQuote
	// Allocated is the final share of the requested amount for this leg.
	// It equals Amount except on the largest leg, which also carries the
	// flooring residual of the split: there Allocated exceeds Amount by
	// fewer than len(Routes) units while Quote stays priced at Amount.
	Allocated *big.Int
}

// SwapRoute is the final execution plan. Allocated amounts sum to Amount.
type SwapRoute struct {
	TradeType        TradeType
	Amount           *big.Int
	Routes           []RouteAllocation
	Quote            *big.Int
	QuoteGasAdjusted *big.Int
	EstimatedGasUsed uint64
	GasCostInToken   *big.Int
	GasCostInWei     *big.Int
	// GasCostInGasToken is nil unless a gas token was configured.
	GasCostInGasToken *big.Int
	BlockNumber       uint64
}
