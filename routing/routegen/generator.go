// Package routegen builds candidate routes between two tokens from a
// bounded subgraph of a pool set.
package routegen

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/L1-Advisors/smart-order-router-sub002/bitset"
	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	tokenpoolregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenpoolregistry"
	uniswapv2calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2/calculator"
	uniswapv3calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/calculator"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Request names the pair and the size used to rank direct pools.
type Request struct {
	TokenIn   common.Address
	TokenOut  common.Address
	Amount    *big.Int
	TradeType routing.TradeType
}

// Generator is stateless; one instance can serve concurrent requests.
type Generator struct{}

func New() *Generator { return &Generator{} }

// candidate is a pool that passed the protocol and liquidity filters.
type candidate struct {
	hop   routing.Hop
	token [2]common.Address
}

// Generate returns every route of at most cfg.MaxHops hops from TokenIn to
// TokenOut over the candidate pools, sorted by hop count then route ID. An
// empty result is not an error.
func (g *Generator) Generate(set *poolset.Set, req Request, cfg routing.Config, tel routing.Telemetry) ([]routing.Route, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.TokenIn == req.TokenOut {
		return nil, fmt.Errorf("%w: token in and token out are both %s", routing.ErrInvalidConfiguration, req.TokenIn.Hex())
	}
	log := tel.Log()

	tokenIn, ok := set.Token(req.TokenIn)
	if !ok {
		log.Debug("token in has no pools", "token", req.TokenIn.Hex())
		tel.Metrics.ObserveRoutesGenerated(0)
		return nil, nil
	}

	pools := allowedPools(set, cfg)
	selected := selectCandidates(pools, req, cfg)
	if len(selected) == 0 {
		tel.Metrics.ObserveRoutesGenerated(0)
		return nil, nil
	}

	registry := tokenpoolregistry.NewTokenPoolRegistry()
	for _, c := range selected {
		registry.AddPool(c.hop.Address(), c.token[0], c.token[1])
	}
	view := registry.View()

	start, okIn := registry.TokenIndex(req.TokenIn)
	end, okOut := registry.TokenIndex(req.TokenOut)
	if !okIn || !okOut {
		tel.Metrics.ObserveRoutesGenerated(0)
		return nil, nil
	}

	s := &searchState{
		view:  view,
		hops:  make([]routing.Hop, len(selected)),
		start: start,
		end:   end,
		max:   cfg.MaxHops,
		used:  bitset.New(len(view.Pools)),
	}
	for _, c := range selected {
		idx, _ := registry.PoolIndex(c.hop.Address())
		s.hops[idx] = c.hop
	}
	s.search(start, nil)

	routes := make([]routing.Route, 0, len(s.found))
	for _, path := range s.found {
		r, err := routing.NewRoute(tokenIn, path)
		if err != nil {
			return nil, err
		}
		if !cfg.Allows(r.Protocol) {
			continue
		}
		// the mixed quoter has no exact output entry point
		if r.Protocol == routing.ProtocolMixed && req.TradeType == routing.ExactOutput {
			continue
		}
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if len(routes[i].Hops) != len(routes[j].Hops) {
			return len(routes[i].Hops) < len(routes[j].Hops)
		}
		return routes[i].ID() < routes[j].ID()
	})

	log.Debug("generated routes", "candidates", len(selected), "routes", len(routes))
	tel.Metrics.ObserveRoutesGenerated(len(routes))
	return routes, nil
}

// allowedPools drops pools whose protocol cannot appear in any allowed
// route, pools without liquidity and pools a quoter path cannot address
// because a deeper pool shares their pair (and fee).
func allowedPools(set *poolset.Set, cfg routing.Config) []candidate {
	mixed := cfg.Allows(routing.ProtocolMixed)
	v2, v3 := set.QuotablePools()
	var out []candidate
	if cfg.Allows(routing.ProtocolV2) || mixed {
		for _, p := range v2 {
			if !p.HasLiquidity() {
				continue
			}
			out = append(out, candidate{hop: routing.V2Hop(p), token: [2]common.Address{p.Token0.Address, p.Token1.Address}})
		}
	}
	if cfg.Allows(routing.ProtocolV3) || mixed {
		for _, p := range v3 {
			if !p.HasLiquidity() {
				continue
			}
			out = append(out, candidate{hop: routing.V3Hop(p), token: [2]common.Address{p.Token0.Address, p.Token1.Address}})
		}
	}
	return out
}

func (c candidate) has(token common.Address) bool {
	return c.token[0] == token || c.token[1] == token
}

func (c candidate) other(token common.Address) common.Address {
	if c.token[0] == token {
		return c.token[1]
	}
	return c.token[0]
}

// depth is the pool's balance of token: the reserve for V2 and the virtual
// reserve at the current price for V3.
func depth(c candidate, token common.Address) *big.Int {
	other := c.other(token)
	if c.hop.V2 != nil {
		r, _, err := uniswapv2calculator.GetReserves(token, other, *c.hop.V2)
		if err != nil {
			return new(big.Int)
		}
		return r
	}
	r, _, err := uniswapv3calculator.GetVirtualReserves(token, other, *c.hop.V3)
	if err != nil {
		return new(big.Int)
	}
	return r
}

// directScore ranks a direct pool. Exact input pools are ranked by the
// output for the requested amount; exact output pools by the depth of the
// output token.
func directScore(c candidate, req Request) *big.Int {
	if req.TradeType == routing.ExactInput && req.Amount != nil && req.Amount.Sign() > 0 {
		var (
			out *big.Int
			err error
		)
		if c.hop.V2 != nil {
			out, err = uniswapv2calculator.GetAmountOut(req.Amount, req.TokenIn, req.TokenOut, *c.hop.V2)
		} else {
			out, err = uniswapv3calculator.GetAmountOut(req.Amount, req.TokenIn, *c.hop.V3)
		}
		if err != nil {
			return new(big.Int)
		}
		return out
	}
	return depth(c, req.TokenOut)
}

type scored struct {
	c     candidate
	score *big.Int
}

// topN sorts by score descending with the pool address as tie-break.
func topN(list []scored, n int) []candidate {
	sort.SliceStable(list, func(i, j int) bool {
		if cmp := list[i].score.Cmp(list[j].score); cmp != 0 {
			return cmp > 0
		}
		return list[i].c.hop.Address().Hex() < list[j].c.hop.Address().Hex()
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]candidate, len(list))
	for i, s := range list {
		out[i] = s.c
	}
	return out
}

// selectCandidates applies the breadth caps. The result is ordered by
// selection stage, which keeps the registry indices deterministic.
func selectCandidates(pools []candidate, req Request, cfg routing.Config) []candidate {
	chosen := mapset.NewThreadUnsafeSet[common.Address]()
	var out []candidate
	take := func(cs []candidate) {
		for _, c := range cs {
			if chosen.Add(c.hop.Address()) {
				out = append(out, c)
			}
		}
	}
	byDepth := func(n int, token common.Address, match func(candidate) bool) []candidate {
		if n == 0 {
			return nil
		}
		var list []scored
		for _, c := range pools {
			if chosen.Contains(c.hop.Address()) || !match(c) {
				continue
			}
			list = append(list, scored{c: c, score: depth(c, token)})
		}
		return topN(list, n)
	}

	// direct pools
	if cfg.TopNDirect > 0 {
		var list []scored
		for _, c := range pools {
			if c.has(req.TokenIn) && c.has(req.TokenOut) {
				list = append(list, scored{c: c, score: directScore(c, req)})
			}
		}
		take(topN(list, cfg.TopNDirect))
	}

	// deepest pools of each side
	inSide := byDepth(cfg.TopNTokenInOut, req.TokenIn, func(c candidate) bool { return c.has(req.TokenIn) })
	take(inSide)
	outSide := byDepth(cfg.TopNTokenInOut, req.TokenOut, func(c candidate) bool { return c.has(req.TokenOut) })
	take(outSide)

	// pools pairing each base token with either side
	bases := mapset.NewThreadUnsafeSet[common.Address](cfg.BaseTokens...)
	bases.Remove(req.TokenIn)
	bases.Remove(req.TokenOut)
	baseList := bases.ToSlice()
	sort.Slice(baseList, func(i, j int) bool { return baseList[i].Hex() < baseList[j].Hex() })
	for _, b := range baseList {
		b := b
		take(byDepth(cfg.TopNWithEachBaseToken, b, func(c candidate) bool { return c.has(b) && c.has(req.TokenIn) }))
		take(byDepth(cfg.TopNWithEachBaseToken, b, func(c candidate) bool { return c.has(b) && c.has(req.TokenOut) }))
	}

	// second hop: the deepest pools of the tokens reached by the first selection
	if cfg.MaxHops > 1 {
		for _, side := range []struct {
			token common.Address
			pools []candidate
		}{{req.TokenIn, inSide}, {req.TokenOut, outSide}} {
			for _, c := range side.pools {
				mid := c.other(side.token)
				if mid == req.TokenIn || mid == req.TokenOut {
					continue
				}
				take(byDepth(cfg.TopNSecondHop, mid, func(c candidate) bool { return c.has(mid) }))
			}
		}
	}
	return out
}

// searchState is the depth-first enumeration over the candidate graph.
type searchState struct {
	view  *tokenpoolregistry.TokenPoolRegistryView
	hops  []routing.Hop
	start int
	end   int
	max   int
	used  bitset.BitSet
	found [][]routing.Hop
}

func (s *searchState) search(current int, path []routing.Hop) {
	for _, edge := range s.view.Adjacency[current] {
		target := s.view.EdgeTargets[edge]
		if target == s.start {
			continue
		}
		for _, poolIndex := range s.view.EdgePools[edge] {
			if s.used.Has(poolIndex) {
				continue
			}
			next := make([]routing.Hop, len(path)+1)
			copy(next, path)
			next[len(path)] = s.hops[poolIndex]

			if target == s.end {
				s.found = append(s.found, next)
				continue
			}
			if len(next) >= s.max {
				continue
			}
			s.used.Add(poolIndex)
			s.search(target, next)
			s.used.Remove(poolIndex)
		}
	}
}
