package routegen

import (
	"math/big"
	"testing"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	pst "github.com/L1-Advisors/smart-order-router-sub002/poolset/poolsettest"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond is WETH->USDC directly over a V2 and a V3 pool, plus WETH->DAI->USDC.
func diamond() *poolset.Set {
	return pst.Set(
		[]uniswapv2.Pool{
			pst.V2(pst.Addr(0x11), pst.WETH, pst.USDC, pst.Exp10(100, 18), pst.Exp10(200_000, 6)),
			pst.V2(pst.Addr(0x13), pst.WETH, pst.DAI, pst.Exp10(100, 18), pst.Exp10(200_000, 18)),
		},
		[]uniswapv3.Pool{
			pst.V3(pst.Addr(0x12), pst.WETH, pst.USDC, 500, pst.Exp10(1, 18), 0),
			pst.V3(pst.Addr(0x14), pst.DAI, pst.USDC, 100, pst.Exp10(1, 18), 0),
		},
	)
}

func request(tradeType routing.TradeType) Request {
	return Request{TokenIn: pst.WETH.Address, TokenOut: pst.USDC.Address, Amount: pst.Exp10(1, 18), TradeType: tradeType}
}

func ids(routes []routing.Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.String() + " " + r.ID()
	}
	return out
}

func TestGenerate_Diamond(t *testing.T) {
	cfg := routing.DefaultConfig()
	cfg.BaseTokens = []common.Address{pst.DAI.Address}

	routes, err := New().Generate(diamond(), request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	require.Len(t, routes, 3, ids(routes))

	assert.Equal(t, routing.ProtocolV2, routes[0].Protocol)
	assert.Equal(t, []common.Address{pst.Addr(0x11)}, routes[0].Pools())
	assert.Equal(t, routing.ProtocolV3, routes[1].Protocol)
	assert.Equal(t, routing.ProtocolMixed, routes[2].Protocol)
	assert.Equal(t, []common.Address{pst.Addr(0x13), pst.Addr(0x14)}, routes[2].Pools())
	assert.Equal(t, "[MIXED] WETH -> DAI -> USDC", routes[2].String())

	for _, r := range routes {
		assert.Equal(t, pst.WETH.Address, r.Input().Address)
		assert.Equal(t, pst.USDC.Address, r.Output().Address)
	}
}

func TestGenerate_Filters(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*routing.Config)
		tradeType routing.TradeType
		want      []routing.Protocol
	}{
		{"v2 only", func(c *routing.Config) { c.AllowedProtocols = []routing.Protocol{routing.ProtocolV2} }, routing.ExactInput, []routing.Protocol{routing.ProtocolV2}},
		{"v3 only", func(c *routing.Config) { c.AllowedProtocols = []routing.Protocol{routing.ProtocolV3} }, routing.ExactInput, []routing.Protocol{routing.ProtocolV3}},
		{"mixed only", func(c *routing.Config) { c.AllowedProtocols = []routing.Protocol{routing.ProtocolMixed} }, routing.ExactInput, []routing.Protocol{routing.ProtocolMixed}},
		{"exact output skips mixed", func(*routing.Config) {}, routing.ExactOutput, []routing.Protocol{routing.ProtocolV2, routing.ProtocolV3}},
		{"single hop", func(c *routing.Config) { c.MaxHops = 1 }, routing.ExactInput, []routing.Protocol{routing.ProtocolV2, routing.ProtocolV3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := routing.DefaultConfig()
			cfg.BaseTokens = []common.Address{pst.DAI.Address}
			tc.mutate(&cfg)

			routes, err := New().Generate(diamond(), request(tc.tradeType), cfg, routing.Telemetry{})
			require.NoError(t, err)
			got := make([]routing.Protocol, len(routes))
			for i, r := range routes {
				got[i] = r.Protocol
				assert.True(t, cfg.Allows(r.Protocol))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGenerate_EmptyGraph(t *testing.T) {
	routes, err := New().Generate(pst.Set(nil, nil), request(routing.ExactInput), routing.DefaultConfig(), routing.Telemetry{})
	require.NoError(t, err)
	assert.Empty(t, routes)

	// tokens exist but are not connected
	set := pst.Set([]uniswapv2.Pool{
		pst.V2(pst.Addr(1), pst.WETH, pst.DAI, pst.Exp10(1, 18), pst.Exp10(1, 18)),
		pst.V2(pst.Addr(2), pst.WBTC, pst.USDC, pst.Exp10(1, 18), pst.Exp10(1, 18)),
	}, nil)
	routes, err = New().Generate(set, request(routing.ExactInput), routing.DefaultConfig(), routing.Telemetry{})
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	req := request(routing.ExactInput)
	req.TokenOut = req.TokenIn
	_, err := New().Generate(diamond(), req, routing.DefaultConfig(), routing.Telemetry{})
	assert.ErrorIs(t, err, routing.ErrInvalidConfiguration)

	cfg := routing.DefaultConfig()
	cfg.DistributionPercent = 30
	_, err = New().Generate(diamond(), request(routing.ExactInput), cfg, routing.Telemetry{})
	assert.ErrorIs(t, err, routing.ErrInvalidConfiguration)
}

func TestGenerate_SkipsEmptyPools(t *testing.T) {
	empty := pst.V2(pst.Addr(0x21), pst.WETH, pst.USDC, big.NewInt(0), pst.Exp10(1, 6))
	set := pst.Set([]uniswapv2.Pool{empty, pst.V2(pst.Addr(0x22), pst.WETH, pst.USDC, pst.Exp10(1, 18), pst.Exp10(1, 6))}, nil)

	routes, err := New().Generate(set, request(routing.ExactInput), routing.DefaultConfig(), routing.Telemetry{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, []common.Address{pst.Addr(0x22)}, routes[0].Pools())
}

func TestGenerate_NeverReusesPoolOrTokenIn(t *testing.T) {
	// parallel V2 and V3 WETH/DAI pools and one DAI/USDC pool
	set := pst.Set([]uniswapv2.Pool{
		pst.V2(pst.Addr(0x31), pst.WETH, pst.DAI, pst.Exp10(1, 18), pst.Exp10(1, 18)),
		pst.V2(pst.Addr(0x33), pst.DAI, pst.USDC, pst.Exp10(1, 18), pst.Exp10(1, 6)),
	}, []uniswapv3.Pool{
		pst.V3(pst.Addr(0x32), pst.WETH, pst.DAI, 500, pst.Exp10(2, 18), 0),
	})
	cfg := routing.DefaultConfig()
	cfg.TopNTokenInOut = 5

	routes, err := New().Generate(set, request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	require.Len(t, routes, 2, ids(routes))

	for _, r := range routes {
		seen := map[common.Address]bool{}
		for _, p := range r.Pools() {
			assert.False(t, seen[p], "pool %s reused in %s", p.Hex(), r)
			seen[p] = true
		}
		for _, tok := range r.Tokens[1:] {
			assert.NotEqual(t, pst.WETH.Address, tok.Address, "token in revisited in %s", r)
		}
	}
}

func TestGenerate_DirectBreadthRanksByOutput(t *testing.T) {
	shallow := pst.V3(pst.Addr(0x41), pst.WETH, pst.USDC, 3000, pst.Exp10(1, 12), -196260)
	deep := pst.V2(pst.Addr(0x42), pst.WETH, pst.USDC, pst.Exp10(100, 18), pst.Exp10(200_000, 6))
	set := pst.Set([]uniswapv2.Pool{deep}, []uniswapv3.Pool{shallow})

	cfg := routing.DefaultConfig()
	cfg.TopNDirect = 1
	cfg.TopNTokenInOut = 0
	cfg.TopNWithEachBaseToken = 0
	cfg.TopNSecondHop = 0

	routes, err := New().Generate(set, request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, []common.Address{deep.Address}, routes[0].Pools())
}

func TestGenerate_SkipsPoolsShadowedOnTheQuoterPath(t *testing.T) {
	// a quoter path names V2 hops by pair and V3 hops by pair and fee, so
	// the dust twins are unreachable
	set := pst.Set(
		[]uniswapv2.Pool{
			pst.V2(pst.Addr(0x61), pst.WETH, pst.USDC, pst.Exp10(100, 18), pst.Exp10(200_000, 6)),
			pst.V2(pst.Addr(0x62), pst.WETH, pst.USDC, pst.Exp10(1, 15), pst.Exp10(2, 6)),
		},
		[]uniswapv3.Pool{
			pst.V3(pst.Addr(0x63), pst.WETH, pst.USDC, 3000, pst.Exp10(1, 6), 0),
			pst.V3(pst.Addr(0x64), pst.WETH, pst.USDC, 3000, pst.Exp10(1, 18), 0),
			pst.V3(pst.Addr(0x65), pst.WETH, pst.USDC, 500, pst.Exp10(1, 6), 0),
		},
	)
	cfg := routing.DefaultConfig()
	cfg.TopNDirect = 5

	routes, err := New().Generate(set, request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)

	var pools []common.Address
	for _, r := range routes {
		pools = append(pools, r.Pools()...)
	}
	assert.ElementsMatch(t, []common.Address{pst.Addr(0x61), pst.Addr(0x64), pst.Addr(0x65)}, pools)
}

func TestGenerate_SecondHop(t *testing.T) {
	// WETH -> WBTC -> DAI -> USDC needs the WBTC/DAI pool from the second hop stage
	set := pst.Set([]uniswapv2.Pool{
		pst.V2(pst.Addr(0x51), pst.WETH, pst.WBTC, pst.Exp10(10, 18), pst.Exp10(1, 8)),
		pst.V2(pst.Addr(0x52), pst.WBTC, pst.DAI, pst.Exp10(1, 8), pst.Exp10(30_000, 18)),
		pst.V2(pst.Addr(0x53), pst.DAI, pst.USDC, pst.Exp10(30_000, 18), pst.Exp10(30_000, 6)),
	}, nil)

	cfg := routing.DefaultConfig()
	routes, err := New().Generate(set, request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	require.Len(t, routes, 1, ids(routes))
	assert.Len(t, routes[0].Hops, 3)

	cfg.MaxHops = 2
	routes, err = New().Generate(set, request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := routing.DefaultConfig()
	cfg.BaseTokens = []common.Address{pst.DAI.Address}
	a, err := New().Generate(diamond(), request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	b, err := New().Generate(diamond(), request(routing.ExactInput), cfg, routing.Telemetry{})
	require.NoError(t, err)
	assert.Equal(t, ids(a), ids(b))
}
