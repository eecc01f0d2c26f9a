package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/L1-Advisors/smart-order-router-sub002/cmd/router/config"
	rpcexecutor "github.com/L1-Advisors/smart-order-router-sub002/executor/rpc"
	"github.com/L1-Advisors/smart-order-router-sub002/executor/sim"
	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/L1-Advisors/smart-order-router-sub002/providers"
	"github.com/L1-Advisors/smart-order-router-sub002/router"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
)

const maxDialAttempts = 5

// app is a wired router plus the snapshot it reads tokens from.
type app struct {
	router *router.Router
	set    *poolset.Set
	close  func()
}

func newApp(ctx context.Context, cfg *config.RouterConfig, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	set, err := poolset.LoadSnapshot(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool snapshot: %w", err)
	}
	if cfg.ChainID != 0 && set.ChainID() != 0 && set.ChainID() != cfg.ChainID {
		return nil, fmt.Errorf("snapshot is for chain %d, configured chain is %d", set.ChainID(), cfg.ChainID)
	}

	var pools providers.PoolProvider
	pools, err = providers.NewStaticPoolProvider(set)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackSnapshotPath != "" {
		fallback, err := providers.LoadStaticPoolProvider(cfg.FallbackSnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback snapshot: %w", err)
		}
		if pools, err = providers.NewFallbackPoolProvider(pools, fallback, logger.With("component", "pool-provider")); err != nil {
			return nil, err
		}
	}
	if pools, err = providers.NewCachingPoolProvider(pools, cfg.PoolCacheSize); err != nil {
		return nil, err
	}

	fees, err := providers.NewStaticTokenFeeProvider(cfg.TokenFees)
	if err != nil {
		return nil, err
	}

	rc := router.Config{
		Pools:     pools,
		TokenFees: fees,
		Quoter:    cfg.Quoter,
		Gas:       cfg.Gas,
		Logger:    logger.With("component", "router"),
		Metrics:   routing.NewMetrics(reg),
	}
	closeFn := func() {}

	if cfg.RPCURL != "" {
		exec, err := rpcexecutor.Dial(ctx, rpcexecutor.Config{
			URL:             cfg.RPCURL,
			Logger:          logger.With("component", "rpc-executor"),
			MaxDialAttempts: maxDialAttempts,
		})
		if err != nil {
			return nil, err
		}
		gasPrice, head := providers.NewEthClientProviders(ethclient.NewClient(exec.Client()))
		rc.Executor = exec
		rc.GasPrice = gasPrice
		if cfg.FollowHead {
			rc.Blocks = head
		}
		closeFn = exec.Close
	} else {
		price, err := cfg.GasPrice()
		if err != nil {
			return nil, err
		}
		if rc.GasPrice, err = providers.NewStaticGasPriceProvider(price); err != nil {
			return nil, err
		}
		rc.Executor = sim.New(set)
	}

	r, err := router.New(rc)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &app{router: r, set: set, close: closeFn}, nil
}

// token resolves an address or a symbol known to the snapshot.
func (a *app) token(s string) (tokenregistry.Token, error) {
	if common.IsHexAddress(s) {
		addr := common.HexToAddress(s)
		if t, ok := a.set.Token(addr); ok {
			return t, nil
		}
		return tokenregistry.Token{}, fmt.Errorf("token %s is not in the snapshot", addr.Hex())
	}
	var found []tokenregistry.Token
	for _, t := range a.set.Tokens() {
		if strings.EqualFold(t.Symbol, s) {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return tokenregistry.Token{}, fmt.Errorf("unknown token %q", s)
	case 1:
		return found[0], nil
	}
	return tokenregistry.Token{}, fmt.Errorf("symbol %q is ambiguous, use an address", s)
}

// request builds a router request from the command line values.
func (a *app) request(cfg *config.RouterConfig, in, out, amount, tradeType string) (router.Request, tokenregistry.Token, tokenregistry.Token, error) {
	tokenIn, err := a.token(in)
	if err != nil {
		return router.Request{}, tokenIn, tokenregistry.Token{}, err
	}
	tokenOut, err := a.token(out)
	if err != nil {
		return router.Request{}, tokenIn, tokenOut, err
	}
	tt, err := routing.ParseTradeType(tradeType)
	if err != nil {
		return router.Request{}, tokenIn, tokenOut, err
	}
	// the amount is denominated in the token the trade fixes
	amountToken := tokenIn
	if tt == routing.ExactOutput {
		amountToken = tokenOut
	}
	raw, err := tokenregistry.ParseAmount(amount, amountToken.Decimals)
	if err != nil {
		return router.Request{}, tokenIn, tokenOut, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return router.Request{
		TokenIn:   tokenIn.Address,
		TokenOut:  tokenOut.Address,
		Amount:    raw,
		TradeType: tt,
		Config:    cfg.Routing,
	}, tokenIn, tokenOut, nil
}
