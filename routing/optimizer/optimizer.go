// Package optimizer picks the best single route or split of routes from the
// quoted candidates.
package optimizer

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

var ppm = big.NewInt(1_000_000)

// Request is the input of Select.
type Request struct {
	Quotes      []routing.RouteQuotes
	Amount      *big.Int
	TradeType   routing.TradeType
	BlockNumber uint64
	Config      routing.Config
}

// partial is a set of routes covering part of the amount.
type partial struct {
	routes     []routing.RouteWithQuote
	remaining  int
	percentIdx int
}

// Select searches splits breadth first, one extra route per layer, so a
// split only replaces a smaller one when it is strictly better by more than
// the tie epsilon. It returns nil when no successful quote exists or no
// combination satisfies the split bounds.
func Select(ctx context.Context, req Request, tel routing.Telemetry) (*routing.SwapRoute, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", routing.ErrInvalidConfiguration)
	}
	exactIn := req.TradeType == routing.ExactInput
	percents := routing.Percents(cfg.DistributionPercent)
	sorted := sortByPercent(req.Quotes, exactIn, cfg.MaxSplitRoutes)
	if len(sorted) == 0 {
		tel.Log().Debug("no successful quotes")
		return nil, nil
	}

	var (
		best      []routing.RouteWithQuote
		bestValue *big.Int
	)
	consider := func(routes []routing.RouteWithQuote) {
		v := sumAdjusted(routes)
		if bestValue == nil || improves(v, bestValue, exactIn, cfg.TieEpsilonPPM) {
			best = append([]routing.RouteWithQuote(nil), routes...)
			bestValue = v
		}
	}

	if full := sorted[100]; len(full) > 0 && cfg.MinSplits <= 1 {
		consider(full[:1])
	}

	// seed with the best two routes at every percent
	var queue []partial
	for i := len(percents) - 1; i >= 0; i-- {
		list := sorted[percents[i]]
		for k := 0; k < 2 && k < len(list); k++ {
			queue = append(queue, partial{routes: list[k : k+1], remaining: 100 - percents[i], percentIdx: i})
		}
	}

	for splits := 2; len(queue) > 0 && splits <= cfg.MaxSplits; splits++ {
		if err := expired(ctx); err != nil {
			return nil, err
		}
		// a layer that did not improve on the previous one ends the search
		if splits >= 3 && best != nil && len(best) < splits-1 {
			break
		}
		layer := queue
		queue = nil
		for _, cur := range layer {
			if err := expired(ctx); err != nil {
				return nil, err
			}
			for i := cur.percentIdx; i >= 0; i-- {
				pct := percents[i]
				if pct > cur.remaining {
					continue
				}
				next, ok := firstDisjoint(cur.routes, sorted[pct])
				if !ok {
					continue
				}
				routes := make([]routing.RouteWithQuote, len(cur.routes)+1)
				copy(routes, cur.routes)
				routes[len(cur.routes)] = next

				remaining := cur.remaining - pct
				if remaining == 0 {
					if splits >= cfg.MinSplits {
						consider(routes)
					}
					continue
				}
				queue = append(queue, partial{routes: routes, remaining: remaining, percentIdx: i})
			}
		}
	}

	if best == nil {
		tel.Log().Debug("no split satisfies the bounds", "min_splits", cfg.MinSplits, "max_splits", cfg.MaxSplits)
		return nil, nil
	}
	if err := expired(ctx); err != nil {
		return nil, err
	}
	swap := build(best, req)
	tel.Metrics.ObserveSplits(len(swap.Routes))
	return swap, nil
}

func expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", routing.ErrDeadlineExceeded, err)
	}
	return nil
}

func adjusted(q routing.RouteWithQuote) *big.Int {
	if q.QuoteGasAdjusted != nil {
		return q.QuoteGasAdjusted
	}
	return q.Quote
}

func sumAdjusted(routes []routing.RouteWithQuote) *big.Int {
	total := new(big.Int)
	for _, r := range routes {
		total.Add(total, adjusted(r))
	}
	return total
}

// improves reports whether candidate beats incumbent by more than
// epsilonPPM parts per million of the incumbent.
func improves(candidate, incumbent *big.Int, exactIn bool, epsilonPPM uint64) bool {
	gain := new(big.Int)
	if exactIn {
		gain.Sub(candidate, incumbent)
	} else {
		gain.Sub(incumbent, candidate)
	}
	if gain.Sign() <= 0 {
		return false
	}
	lhs := gain.Mul(gain, ppm)
	rhs := new(big.Int).Abs(incumbent)
	rhs.Mul(rhs, new(big.Int).SetUint64(epsilonPPM))
	return lhs.Cmp(rhs) > 0
}

// sortByPercent keeps the successful quotes, best first per percent.
func sortByPercent(all []routing.RouteQuotes, exactIn bool, limit int) map[int][]routing.RouteWithQuote {
	out := make(map[int][]routing.RouteWithQuote)
	for _, rq := range all {
		for _, q := range rq.Quotes {
			if !q.Success || adjusted(q) == nil {
				continue
			}
			out[q.Percent] = append(out[q.Percent], q)
		}
	}
	for pct, list := range out {
		sort.SliceStable(list, func(i, j int) bool {
			cmp := adjusted(list[i]).Cmp(adjusted(list[j]))
			if cmp != 0 {
				if exactIn {
					return cmp > 0
				}
				return cmp < 0
			}
			return list[i].Route.ID() < list[j].Route.ID()
		})
		if len(list) > limit {
			list = list[:limit]
		}
		out[pct] = list
	}
	return out
}

// firstDisjoint returns the best candidate that shares no pool with used.
func firstDisjoint(used []routing.RouteWithQuote, candidates []routing.RouteWithQuote) (routing.RouteWithQuote, bool) {
	pools := mapset.NewThreadUnsafeSet[common.Address]()
	for _, u := range used {
		pools.Append(u.Route.Pools()...)
	}
	for _, c := range candidates {
		clash := false
		for _, p := range c.Route.Pools() {
			if pools.Contains(p) {
				clash = true
				break
			}
		}
		if !clash {
			return c, true
		}
	}
	return routing.RouteWithQuote{}, false
}

// build allocates the amount and aggregates the chosen quotes. Each leg
// gets floor(amount*percent/100); the rounding residual goes to the
// largest leg.
func build(chosen []routing.RouteWithQuote, req Request) *routing.SwapRoute {
	legs := append([]routing.RouteWithQuote(nil), chosen...)
	sort.SliceStable(legs, func(i, j int) bool {
		if legs[i].Percent != legs[j].Percent {
			return legs[i].Percent > legs[j].Percent
		}
		return legs[i].Route.ID() < legs[j].Route.ID()
	})

	swap := &routing.SwapRoute{
		TradeType:        req.TradeType,
		Amount:           new(big.Int).Set(req.Amount),
		Routes:           make([]routing.RouteAllocation, len(legs)),
		Quote:            new(big.Int),
		QuoteGasAdjusted: new(big.Int),
		GasCostInToken:   new(big.Int),
		GasCostInWei:     new(big.Int),
		BlockNumber:      req.BlockNumber,
	}
	allocated := new(big.Int)
	for i, q := range legs {
		share := new(big.Int).Mul(req.Amount, big.NewInt(int64(q.Percent)))
		share.Quo(share, big.NewInt(100))
		allocated.Add(allocated, share)
		swap.Routes[i] = routing.RouteAllocation{RouteWithQuote: q, Allocated: share}

		swap.Quote.Add(swap.Quote, q.Quote)
		swap.QuoteGasAdjusted.Add(swap.QuoteGasAdjusted, adjusted(q))
		swap.EstimatedGasUsed += q.GasEstimate
		if q.GasCostInToken != nil {
			swap.GasCostInToken.Add(swap.GasCostInToken, q.GasCostInToken)
		}
		if q.GasCostInWei != nil {
			swap.GasCostInWei.Add(swap.GasCostInWei, q.GasCostInWei)
		}
		if q.GasCostInGasToken != nil {
			if swap.GasCostInGasToken == nil {
				swap.GasCostInGasToken = new(big.Int)
			}
			swap.GasCostInGasToken.Add(swap.GasCostInGasToken, q.GasCostInGasToken)
		}
	}
	// legs are sorted by percent, so the first one is the largest
	residual := new(big.Int).Sub(req.Amount, allocated)
	swap.Routes[0].Allocated.Add(swap.Routes[0].Allocated, residual)
	return swap
}
