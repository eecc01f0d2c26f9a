package sim

import (
	"context"
	"math/big"
	"testing"

	pst "github.com/L1-Advisors/smart-order-router-sub002/poolset/poolsettest"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv2calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2/calculator"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	uniswapv3calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/calculator"
	quoterabi "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3/quoter"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/quoter"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wethUSDC = pst.V3(pst.Addr(0x301), pst.WETH, pst.USDC, 3000, pst.Exp10(1, 24), 0)
	usdcDAI  = pst.V2(pst.Addr(0x201), pst.USDC, pst.DAI, pst.Exp10(5, 24), pst.Exp10(5, 24))
)

func testSet() *Executor {
	return New(pst.Set([]uniswapv2.Pool{usdcDAI}, []uniswapv3.Pool{wethUSDC}))
}

func call(t *testing.T, method string, tokens []common.Address, fees []uint32, amount *big.Int, gas uint64) quoter.RawCall {
	t.Helper()
	path, err := quoterabi.EncodePath(tokens, fees)
	require.NoError(t, err)
	data, err := quoterabi.PackQuote(method, path, amount)
	require.NoError(t, err)
	return quoter.RawCall{Data: data, Gas: gas}
}

func decode(t *testing.T, method string, res quoter.RawResult) quoterabi.Result {
	t.Helper()
	require.NoError(t, res.Err)
	out, err := quoterabi.UnpackResult(method, res.Data)
	require.NoError(t, err)
	return out
}

func TestExecuteBatch_ExactInput(t *testing.T) {
	e := testSet()
	amount := pst.Exp10(1, 18)

	calls := []quoter.RawCall{
		call(t, quoterabi.MethodQuoteExactInput, []common.Address{pst.WETH.Address, pst.USDC.Address}, []uint32{3000}, amount, 0),
		call(t, quoterabi.MethodQuoteExactInput,
			[]common.Address{pst.WETH.Address, pst.USDC.Address, pst.DAI.Address},
			[]uint32{3000, quoterabi.MixedV2Fee}, amount, 0),
	}
	results, err := e.ExecuteBatch(context.Background(), calls, pst.Block)
	require.NoError(t, err)
	require.Len(t, results, 2)

	single := decode(t, quoterabi.MethodQuoteExactInput, results[0])
	want, err := uniswapv3calculator.QuoteExactInput(amount, nil, pst.WETH.Address, wethUSDC)
	require.NoError(t, err)
	assert.Equal(t, want.Amount.String(), single.Amount.String())
	assert.Equal(t, want.SqrtPriceX96After.String(), single.SqrtPriceX96AfterList[0].String())
	assert.Equal(t, DefaultCallGas+DefaultHopGas, single.GasEstimate.Uint64())

	mixed := decode(t, quoterabi.MethodQuoteExactInput, results[1])
	wantDAI, err := uniswapv2calculator.GetAmountOut(want.Amount, pst.USDC.Address, pst.DAI.Address, usdcDAI)
	require.NoError(t, err)
	assert.Equal(t, wantDAI.String(), mixed.Amount.String())
	require.Len(t, mixed.SqrtPriceX96AfterList, 2)
	assert.Zero(t, mixed.SqrtPriceX96AfterList[1].Sign(), "constant-product hops report no price")
}

func TestExecuteBatch_ExactOutputTakesReversedPath(t *testing.T) {
	e := testSet()
	amountOut := pst.Exp10(1, 17)

	// buy DAI with WETH: the path runs DAI -> USDC -> WETH
	c := call(t, quoterabi.MethodQuoteExactOutput,
		[]common.Address{pst.DAI.Address, pst.USDC.Address, pst.WETH.Address},
		[]uint32{quoterabi.MixedV2Fee, 3000}, amountOut, 0)
	results, err := e.ExecuteBatch(context.Background(), []quoter.RawCall{c}, pst.Block)
	require.NoError(t, err)
	got := decode(t, quoterabi.MethodQuoteExactOutput, results[0])

	usdcIn, err := uniswapv2calculator.GetAmountIn(amountOut, pst.USDC.Address, pst.DAI.Address, usdcDAI)
	require.NoError(t, err)
	wethIn, err := uniswapv3calculator.QuoteExactOutput(usdcIn, nil, pst.WETH.Address, wethUSDC)
	require.NoError(t, err)
	assert.Equal(t, wethIn.Amount.String(), got.Amount.String())
}

func TestExecuteBatch_StaleBlock(t *testing.T) {
	e := testSet()
	c := call(t, quoterabi.MethodQuoteExactInput, []common.Address{pst.WETH.Address, pst.USDC.Address}, []uint32{3000}, big.NewInt(1000), 0)

	_, err := e.ExecuteBatch(context.Background(), []quoter.RawCall{c}, pst.Block+1)
	assert.ErrorIs(t, err, routing.ErrStaleBlockHeight)

	results, err := e.ExecuteBatch(context.Background(), []quoter.RawCall{c}, 0)
	require.NoError(t, err, "zero means the snapshot block")
	assert.NoError(t, results[0].Err)
}

func TestExecuteBatch_UnknownPoolReverts(t *testing.T) {
	e := testSet()
	calls := []quoter.RawCall{
		call(t, quoterabi.MethodQuoteExactInput, []common.Address{pst.WETH.Address, pst.USDC.Address}, []uint32{500}, big.NewInt(1000), 0),
		{Data: []byte{0x01, 0x02, 0x03, 0x04}},
	}
	results, err := e.ExecuteBatch(context.Background(), calls, pst.Block)
	require.NoError(t, err)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, quoter.ErrExecutionReverted)
	}
}

func TestExecuteBatch_GasLimits(t *testing.T) {
	amount := pst.Exp10(1, 18)
	path := []common.Address{pst.WETH.Address, pst.USDC.Address}

	t.Run("per call", func(t *testing.T) {
		e := testSet()
		tight := call(t, quoterabi.MethodQuoteExactInput, path, []uint32{3000}, amount, DefaultCallGas)
		loose := call(t, quoterabi.MethodQuoteExactInput, path, []uint32{3000}, amount, 1_000_000)
		results, err := e.ExecuteBatch(context.Background(), []quoter.RawCall{tight, loose}, pst.Block)
		require.NoError(t, err)
		assert.ErrorIs(t, results[0].Err, quoter.ErrGasCeilingExceeded)
		assert.NoError(t, results[1].Err)
	})

	t.Run("per batch", func(t *testing.T) {
		e := New(pst.Set(nil, []uniswapv3.Pool{wethUSDC}), WithGasModel(100, 100, 0), WithBatchGasLimit(300))
		c := call(t, quoterabi.MethodQuoteExactInput, path, []uint32{3000}, amount, 0)

		_, err := e.ExecuteBatch(context.Background(), []quoter.RawCall{c}, pst.Block)
		require.NoError(t, err)
		_, err = e.ExecuteBatch(context.Background(), []quoter.RawCall{c, c}, pst.Block)
		assert.ErrorIs(t, err, quoter.ErrGasCeilingExceeded)
	})
}

func TestExecuteBatch_DrivesQuoteEngine(t *testing.T) {
	e := testSet()
	cfg := quoter.DefaultConfig()
	engine, err := quoter.NewEngine(e, cfg)
	require.NoError(t, err)

	route, err := routing.NewRoute(pst.WETH, []routing.Hop{routing.V3Hop(wethUSDC), routing.V2Hop(usdcDAI)})
	require.NoError(t, err)
	require.Equal(t, routing.ProtocolMixed, route.Protocol)

	amounts := []*big.Int{pst.Exp10(5, 17), pst.Exp10(1, 18)}
	quotes, err := engine.Quote(context.Background(), quoter.Request{
		Routes:      []routing.Route{route},
		Amounts:     amounts,
		Percents:    []int{50, 100},
		TradeType:   routing.ExactInput,
		BlockNumber: pst.Block,
		Config:      routing.DefaultConfig(),
	}, routing.Telemetry{})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	for _, q := range quotes[0].Quotes {
		require.True(t, q.Success, "quote for %d%% failed: %v", q.Percent, q.Err)
	}
	assert.Equal(t, 1, quotes[0].Quotes[1].Quote.Cmp(quotes[0].Quotes[0].Quote))
}
