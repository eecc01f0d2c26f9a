// Package router answers swap requests end to end: it pins a block, fetches
// pools and prices, generates candidate routes, quotes them, prices their gas
// and picks the best single or split route.
package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/L1-Advisors/smart-order-router-sub002/providers"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/gas"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/optimizer"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/quoter"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/routegen"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Config holds the collaborators of a Router.
type Config struct {
	Pools    providers.PoolProvider
	GasPrice providers.GasPriceProvider
	Executor quoter.BatchExecutor

	// TokenFees is only consulted when a request enables fee-on-transfer.
	TokenFees providers.TokenFeeProvider
	// Blocks pins requests that carry no block number. Without it the
	// block of the first pool fetch is used.
	Blocks providers.BlockProvider

	Quoter quoter.Config
	Gas    gas.Config

	Logger  routing.Logger
	Metrics *routing.Metrics
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Pools == nil {
		return errors.New("config: Pools is required")
	}
	if c.GasPrice == nil {
		return errors.New("config: GasPrice is required")
	}
	if c.Executor == nil {
		return errors.New("config: Executor is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Option configures a Router.
type Option interface {
	apply(*Router)
}

type funcOption func(*Router)

func (f funcOption) apply(r *Router) {
	f(r)
}

func newOption(f func(*Router)) Option {
	return funcOption(f)
}

// WithQuoterOptions passes options through to the quote engine.
func WithQuoterOptions(opts ...quoter.Option) Option {
	return newOption(func(r *Router) {
		r.quoterOpts = append(r.quoterOpts, opts...)
	})
}

// WithClock replaces time.Now for request duration metrics.
func WithClock(now func() time.Time) Option {
	return newOption(func(r *Router) {
		r.now = now
	})
}

// Router is safe for concurrent use. Requests share nothing but the
// collaborators.
type Router struct {
	cfg        Config
	generator  *routegen.Generator
	engine     *quoter.Engine
	quoterOpts []quoter.Option
	now        func() time.Time
}

// New validates cfg and builds the pipeline.
func New(cfg Config, opts ...Option) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Router{cfg: cfg, generator: routegen.New(), now: time.Now}
	for _, opt := range opts {
		opt.apply(r)
	}
	engine, err := quoter.NewEngine(cfg.Executor, cfg.Quoter, r.quoterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote engine: %w", err)
	}
	r.engine = engine
	return r, nil
}

// Request is one swap to route.
type Request struct {
	TokenIn   common.Address
	TokenOut  common.Address
	Amount    *big.Int
	TradeType routing.TradeType
	Config    routing.Config
}

func (req Request) validate() error {
	if err := req.Config.Validate(); err != nil {
		return err
	}
	if req.TokenIn == req.TokenOut {
		return fmt.Errorf("%w: tokenIn and tokenOut are both %s", routing.ErrInvalidConfiguration, req.TokenIn.Hex())
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", routing.ErrInvalidConfiguration)
	}
	if req.TradeType != routing.ExactInput && req.TradeType != routing.ExactOutput {
		return fmt.Errorf("%w: unknown trade type %d", routing.ErrInvalidConfiguration, req.TradeType)
	}
	return nil
}

// Candidates holds what Routes found, for inspection.
type Candidates struct {
	Routes []routing.Route
	Pools  *poolset.Set
}

// Route returns the best route for req, or nil when no route produced a
// successful quote. A stale block and an elapsed deadline fail the request
// and no partial result is returned.
func (r *Router) Route(ctx context.Context, req Request) (*routing.SwapRoute, error) {
	tel := routing.NewTelemetry(r.cfg.Logger, r.cfg.Metrics)
	start := r.now()
	swap, err := r.route(ctx, req, tel)
	result := "success"
	switch {
	case err != nil:
		result = "error"
		tel.Log().Error("routing failed", "error", err)
	case swap == nil:
		result = "no_route"
		tel.Log().Info("no route found", "token_in", req.TokenIn.Hex(), "token_out", req.TokenOut.Hex())
	default:
		tel.Log().Info("route found", "legs", len(swap.Routes), "quote", swap.Quote, "block", swap.BlockNumber)
	}
	tel.Metrics.ObserveRequest(result, r.now().Sub(start))
	return swap, err
}

// Routes runs only the fetch and generation steps.
func (r *Router) Routes(ctx context.Context, req Request) (*Candidates, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	tel := routing.NewTelemetry(r.cfg.Logger, r.cfg.Metrics)
	ctx, cancel := withDeadline(ctx, req.Config.Deadline)
	defer cancel()

	set, err := r.fetch(ctx, req, tel)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	routes, err := r.generate(set, req, tel)
	if err != nil {
		return nil, err
	}
	return &Candidates{Routes: routes, Pools: set}, nil
}

func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// deadline converts a context failure into ErrDeadlineExceeded. Other
// errors, a stale block in particular, pass through unchanged.
func deadline(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, routing.ErrDeadlineExceeded) || errors.Is(err, routing.ErrStaleBlockHeight) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", routing.ErrDeadlineExceeded, ctxErr)
	}
	return err
}

func (r *Router) route(ctx context.Context, req Request, tel routing.Telemetry) (*routing.SwapRoute, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config
	ctx, cancel := withDeadline(ctx, cfg.Deadline)
	defer cancel()

	var (
		set      *poolset.Set
		gasPrice *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		set, err = r.fetch(gctx, req, tel)
		return err
	})
	g.Go(func() error {
		var err error
		gasPrice, err = r.cfg.GasPrice.GasPrice(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, deadline(ctx, err)
	}
	block := set.BlockNumber()

	routes, err := r.generate(set, req, tel)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, nil
	}

	percents := routing.Percents(cfg.DistributionPercent)
	quotes, err := r.engine.Quote(ctx, quoter.Request{
		Routes:      routes,
		Amounts:     routing.BucketAmounts(req.Amount, percents),
		Percents:    percents,
		TradeType:   req.TradeType,
		BlockNumber: block,
		Config:      cfg,
	}, tel)
	if err != nil {
		return nil, deadline(ctx, err)
	}

	quoteToken := r.token(set, req.TokenOut)
	if req.TradeType == routing.ExactOutput {
		quoteToken = r.token(set, req.TokenIn)
	}
	estimator, err := gas.NewEstimator(set, r.cfg.Gas, gasPrice, quoteToken, req.TradeType, tel)
	if err != nil {
		return nil, err
	}
	estimator.AnnotateAll(quotes)

	swap, err := optimizer.Select(ctx, optimizer.Request{
		Quotes:      quotes,
		Amount:      req.Amount,
		TradeType:   req.TradeType,
		BlockNumber: block,
		Config:      cfg,
	}, tel)
	if err != nil {
		return nil, deadline(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, deadline(ctx, err)
	}
	return swap, nil
}

func (r *Router) token(set *poolset.Set, addr common.Address) tokenregistry.Token {
	if t, ok := set.Token(addr); ok {
		return t
	}
	return tokenregistry.Token{ChainID: set.ChainID(), Address: addr}
}

func (r *Router) generate(set *poolset.Set, req Request, tel routing.Telemetry) ([]routing.Route, error) {
	routes, err := r.generator.Generate(set, routegen.Request{
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		Amount:    req.Amount,
		TradeType: req.TradeType,
	}, req.Config, tel)
	if err != nil {
		return nil, err
	}
	tel.Log().Debug("generated candidate routes", "routes", len(routes), "pools", set.Len())
	return routes, nil
}

// fetch loads the pools of the request at one block. Routes longer than two
// hops need a second round for the tokens one hop away.
func (r *Router) fetch(ctx context.Context, req Request, tel routing.Telemetry) (*poolset.Set, error) {
	cfg := req.Config
	block := cfg.BlockNumber
	if block == 0 && r.cfg.Blocks != nil {
		head, err := r.cfg.Blocks.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		block = head
	}

	set, err := r.cfg.Pools.GetPools(ctx, r.firstRound(req), block)
	if err != nil {
		return nil, err
	}
	if block == 0 {
		block = set.BlockNumber()
	}
	if set.BlockNumber() != block {
		return nil, fmt.Errorf("%w: pool provider answered for block %d, pinned %d", routing.ErrStaleBlockHeight, set.BlockNumber(), block)
	}

	if cfg.MaxHops > 2 {
		if pairs := secondRound(set, req); len(pairs) > 0 {
			more, err := r.cfg.Pools.GetPools(ctx, pairs, block)
			if err != nil {
				return nil, err
			}
			if set, err = set.Merge(more); err != nil {
				return nil, fmt.Errorf("%w: %v", routing.ErrStaleBlockHeight, err)
			}
		}
	}

	if cfg.EnableFeeOnTransfer && r.cfg.TokenFees != nil {
		tokens := set.Tokens()
		addrs := make([]common.Address, len(tokens))
		for i, t := range tokens {
			addrs[i] = t.Address
		}
		fees, err := r.cfg.TokenFees.GetTokenFees(ctx, addrs)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch token fees: %w", err)
		}
		set = set.WithTransferFees(fees)
	}
	tel.Log().Debug("fetched pools", "pools", set.Len(), "tokens", len(set.Tokens()), "block", block)
	return set, nil
}

// firstRound covers every pool of tokenIn and tokenOut, which includes
// their base token and wrapped native pairs.
func (r *Router) firstRound(req Request) []poolset.TokenPair {
	pairs := []poolset.TokenPair{{A: req.TokenIn}, {A: req.TokenOut}}
	native, gt := r.cfg.Gas.WrappedNative, r.cfg.Gas.GasToken
	if native != (common.Address{}) && gt != (common.Address{}) && gt != native {
		pairs = append(pairs, poolset.TokenPair{A: native, B: gt})
	}
	return pairs
}

// secondRound asks for the pools of every token adjacent to tokenIn or
// tokenOut, so three-hop routes can close.
func secondRound(set *poolset.Set, req Request) []poolset.TokenPair {
	seen := map[common.Address]bool{req.TokenIn: true, req.TokenOut: true}
	var pairs []poolset.TokenPair
	add := func(t0, t1 common.Address) {
		for _, pair := range [][2]common.Address{{t0, t1}, {t1, t0}} {
			end, next := pair[0], pair[1]
			if (end == req.TokenIn || end == req.TokenOut) && !seen[next] {
				seen[next] = true
				pairs = append(pairs, poolset.TokenPair{A: next})
			}
		}
	}
	for _, p := range set.V2Pools() {
		add(p.Token0.Address, p.Token1.Address)
	}
	for _, p := range set.V3Pools() {
		add(p.Token0.Address, p.Token1.Address)
	}
	return pairs
}
