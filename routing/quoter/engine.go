// Package quoter evaluates candidate routes at every amount bucket. Pure
// constant-product routes are quoted analytically; the others are sent as
// batched quoter contract calls.
package quoter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	quoterabi "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/quoter"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Option configures the Engine.
type Option interface {
	apply(*Engine)
}

type funcOption func(*Engine)

func (f funcOption) apply(e *Engine) {
	f(e)
}

func newOption(f func(*Engine)) Option {
	return funcOption(f)
}

// WithConcurrency overrides Config.MaxConcurrentChunks.
func WithConcurrency(n int) Option {
	return newOption(func(e *Engine) {
		e.cfg.MaxConcurrentChunks = n
	})
}

// WithClock replaces time.Now, for chunk latency metrics.
func WithClock(now func() time.Time) Option {
	return newOption(func(e *Engine) {
		e.now = now
	})
}

// Engine is safe for concurrent use; it holds no per-request state.
type Engine struct {
	executor BatchExecutor
	cfg      Config
	now      func() time.Time
}

// NewEngine validates cfg and binds it to an executor.
func NewEngine(executor BatchExecutor, cfg Config, opts ...Option) (*Engine, error) {
	if executor == nil {
		return nil, errors.New("config: BatchExecutor is required")
	}
	e := &Engine{executor: executor, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt.apply(e)
	}
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Request is one quoting job. Amounts[i] is the bucket for Percents[i].
type Request struct {
	Routes      []routing.Route
	Amounts     []*big.Int
	Percents    []int
	TradeType   routing.TradeType
	BlockNumber uint64
	// Fee-on-transfer handling follows EnableFeeOnTransfer and
	// SkipOutputTokenBuyFee.
	Config routing.Config
}

// entry is one (route, amount) pair sent to the quoter contract.
type entry struct {
	route  int
	amount int
	method string
	call   RawCall
	gas    uint64
}

// Quote returns, for every route, one RouteWithQuote per amount in request
// order. Individual failures are recorded on the entry and never fail the
// call. Only a stale block or the context ending does.
func (e *Engine) Quote(ctx context.Context, req Request, tel routing.Telemetry) ([]routing.RouteQuotes, error) {
	if len(req.Amounts) != len(req.Percents) {
		return nil, fmt.Errorf("%d amounts for %d percents", len(req.Amounts), len(req.Percents))
	}
	if len(req.Routes) == 0 {
		return nil, nil
	}
	log := tel.Log()
	rules := feeRules{enabled: req.Config.EnableFeeOnTransfer, skipOutputBuy: req.Config.SkipOutputTokenBuyFee}

	out := make([]routing.RouteQuotes, len(req.Routes))
	var entries []entry
	for ri, r := range req.Routes {
		out[ri] = routing.RouteQuotes{Route: r, Quotes: make([]routing.RouteWithQuote, len(req.Amounts))}
		for ai, amount := range req.Amounts {
			q := &out[ri].Quotes[ai]
			q.Route = r
			q.Percent = req.Percents[ai]
			q.Amount = new(big.Int).Set(amount)

			switch r.Protocol {
			case routing.ProtocolV2:
				e.quoteV2(q, req.TradeType, rules)
			case routing.ProtocolV3, routing.ProtocolMixed:
				en, err := e.newEntry(ri, ai, r, amount, req.TradeType)
				if err != nil {
					q.Err = err
					continue
				}
				entries = append(entries, en)
			default:
				q.Err = fmt.Errorf("route %s has unknown protocol %s", r.ID(), r.Protocol)
			}
		}
	}

	if len(entries) > 0 {
		if err := e.execute(ctx, out, entries, req.BlockNumber, tel); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", routing.ErrDeadlineExceeded, ctxErr)
			}
			return nil, err
		}
	}

	var succeeded, failed int
	for ri := range out {
		for ai := range out[ri].Quotes {
			q := &out[ri].Quotes[ai]
			if q.Success {
				succeeded++
				continue
			}
			failed++
			if q.Err == nil {
				q.Err = errors.New("not quoted")
			}
			q.Err = fmt.Errorf("%w: %w", routing.ErrPartialQuoteFailure, q.Err)
		}
	}
	tel.Metrics.AddEntries("success", succeeded)
	tel.Metrics.AddEntries("failed", failed)
	if failed > 0 {
		log.Debug("some quotes failed", "succeeded", succeeded, "failed", failed, "onchain_entries", len(entries))
	}
	return out, nil
}

func (e *Engine) quoteV2(q *routing.RouteWithQuote, tradeType routing.TradeType, rules feeRules) {
	var (
		quote *big.Int
		err   error
	)
	if tradeType == routing.ExactInput {
		quote, err = quoteV2ExactIn(q.Route, q.Amount, rules)
	} else {
		quote, err = quoteV2ExactOut(q.Route, q.Amount, rules)
	}
	if err != nil {
		q.Err = err
		return
	}
	q.Quote = quote
	q.InitializedTicksCrossedList = make([]uint32, len(q.Route.Hops))
	q.Success = true
}

func (e *Engine) newEntry(ri, ai int, r routing.Route, amount *big.Int, tradeType routing.TradeType) (entry, error) {
	tokens := make([]common.Address, len(r.Tokens))
	for i, t := range r.Tokens {
		tokens[i] = t.Address
	}
	fees := make([]uint32, len(r.Hops))
	for i, h := range r.Hops {
		if h.V3 != nil {
			fees[i] = h.V3.Fee
		} else {
			fees[i] = quoterabi.MixedV2Fee
		}
	}

	to := e.cfg.QuoterAddress
	if r.Protocol == routing.ProtocolMixed {
		if tradeType == routing.ExactOutput {
			return entry{}, fmt.Errorf("mixed route %s cannot be quoted for exact output", r.ID())
		}
		to = e.cfg.MixedQuoterAddress
	}

	method := quoterabi.MethodQuoteExactInput
	if tradeType == routing.ExactOutput {
		method = quoterabi.MethodQuoteExactOutput
		tokens, fees = quoterabi.ReversePath(tokens, fees)
	}
	path, err := quoterabi.EncodePath(tokens, fees)
	if err != nil {
		return entry{}, err
	}
	data, err := quoterabi.PackQuote(method, path, amount)
	if err != nil {
		return entry{}, err
	}
	return entry{
		route:  ri,
		amount: ai,
		method: method,
		call:   RawCall{To: to, Data: data},
		gas:    e.cfg.entryGas(len(r.Hops)),
	}, nil
}

// chunkEntries groups entries so that each chunk's estimated gas stays
// under the ceiling. A chunk always holds at least one entry.
func (e *Engine) chunkEntries(entries []entry) [][]entry {
	var (
		chunks [][]entry
		cur    []entry
		used   uint64
	)
	for _, en := range entries {
		if len(cur) > 0 && used+en.gas > e.cfg.GasCeiling {
			chunks = append(chunks, cur)
			cur, used = nil, 0
		}
		cur = append(cur, en)
		used += en.gas
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// execute fans the chunks out and joins them. Each goroutine writes only the
// quotes of its own entries.
func (e *Engine) execute(ctx context.Context, out []routing.RouteQuotes, entries []entry, block uint64, tel routing.Telemetry) error {
	chunks := e.chunkEntries(entries)
	tel.Log().Debug("dispatching quote chunks", "entries", len(entries), "chunks", len(chunks), "block", block)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrentChunks)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			return e.runChunk(gctx, c, out, block, tel)
		})
	}
	return g.Wait()
}

type chunkState int

const (
	stateDispatch chunkState = iota
	stateAwait
	stateRetryPending
	stateSucceeded
	stateFailed
)

// chunk is a unit of work in the retry state machine.
type chunk struct {
	entries []entry
	round   int
	state   chunkState

	results []RawResult
	err     error
	pending []entry
}

// cause is the batch error or, for a lone entry, its call error.
func (c *chunk) cause() error {
	if c.err != nil || len(c.results) != 1 {
		return c.err
	}
	return c.results[0].Err
}

// runChunk drives one chunk and the halves split from it to completion.
// Halves run one after the other.
func (e *Engine) runChunk(ctx context.Context, initial []entry, out []routing.RouteQuotes, block uint64, tel routing.Telemetry) error {
	log := tel.Log()
	queue := []*chunk{{entries: initial}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		for c.state != stateSucceeded && c.state != stateFailed {
			switch c.state {
			case stateDispatch:
				if err := ctx.Err(); err != nil {
					return err
				}
				c.results, c.err = e.dispatch(ctx, c.entries, block, tel)
				c.state = stateAwait

			case stateAwait:
				c.pending = c.pending[:0]
				if c.err != nil {
					if isFatal(c.err) {
						return c.err
					}
					log.Debug("quote chunk failed", "entries", len(c.entries), "round", c.round, "error", c.err)
					c.pending = append(c.pending, c.entries...)
				} else {
					for i, en := range c.entries {
						c.pending = e.settle(out, en, c.results[i], c.pending)
					}
				}
				if len(c.pending) == 0 {
					c.state = stateSucceeded
				} else {
					c.state = stateRetryPending
				}

			case stateRetryPending:
				// a lone call already had the whole ceiling, halving cannot
				// give it more gas
				if cause := c.cause(); len(c.entries) == 1 && errors.Is(cause, ErrGasCeilingExceeded) {
					markFailed(out, c.pending[0], fmt.Errorf("alone at the full gas ceiling: %w", cause))
					c.state = stateFailed
					continue
				}
				if c.round >= e.cfg.MaxRetryRounds {
					cause := c.err
					if cause == nil {
						cause = ErrGasCeilingExceeded
					}
					for _, en := range c.pending {
						markFailed(out, en, fmt.Errorf("gave up after %d retry rounds: %w", c.round, cause))
					}
					c.state = stateFailed
					continue
				}
				tel.Metrics.IncRetries()
				mid := (len(c.pending) + 1) / 2
				pending := append([]entry(nil), c.pending...)
				if mid < len(pending) {
					queue = append(queue, &chunk{entries: pending[mid:], round: c.round + 1})
				}
				log.Debug("halving quote chunk", "pending", len(pending), "round", c.round+1)
				*c = chunk{entries: pending[:mid], round: c.round + 1, state: stateDispatch}
			}
		}
	}
	return nil
}

// dispatch sends one batch. Each call's gas allowance is an equal share of
// the ceiling, so smaller chunks give every call more room.
func (e *Engine) dispatch(ctx context.Context, entries []entry, block uint64, tel routing.Telemetry) ([]RawResult, error) {
	perCall := e.cfg.GasCeiling / uint64(len(entries))
	calls := make([]RawCall, len(entries))
	for i, en := range entries {
		calls[i] = en.call
		calls[i].Gas = perCall
	}

	start := e.now()
	results, err := e.executor.ExecuteBatch(ctx, calls, block)
	elapsed := e.now().Sub(start)
	if err == nil && len(results) != len(calls) {
		err = fmt.Errorf("executor returned %d results for %d calls", len(results), len(calls))
	}
	if err != nil {
		tel.Metrics.ObserveChunk("failed", elapsed)
		return nil, err
	}
	tel.Metrics.ObserveChunk("success", elapsed)
	return results, nil
}

// settle records a call result and returns pending with the entry appended
// when it should be retried.
func (e *Engine) settle(out []routing.RouteQuotes, en entry, res RawResult, pending []entry) []entry {
	if res.Err != nil {
		if errors.Is(res.Err, ErrExecutionReverted) {
			markFailed(out, en, res.Err)
			return pending
		}
		return append(pending, en)
	}
	decoded, err := quoterabi.UnpackResult(en.method, res.Data)
	if err != nil {
		markFailed(out, en, err)
		return pending
	}
	q := &out[en.route].Quotes[en.amount]
	if decoded.Amount == nil || decoded.Amount.Sign() == 0 {
		q.Err = errors.New("quoter returned a zero amount")
		return pending
	}
	q.Quote = decoded.Amount
	q.SqrtPriceX96AfterList = decoded.SqrtPriceX96AfterList
	q.InitializedTicksCrossedList = decoded.InitializedTicksCrossedList
	q.Success = true
	q.Err = nil
	return pending
}

func markFailed(out []routing.RouteQuotes, en entry, err error) {
	q := &out[en.route].Quotes[en.amount]
	q.Success = false
	q.Err = err
}

// isFatal reports errors that make every other result of the request
// meaningless.
func isFatal(err error) bool {
	return errors.Is(err, routing.ErrStaleBlockHeight) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
