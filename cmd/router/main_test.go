package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/L1-Advisors/smart-order-router-sub002/poolset"
	pst "github.com/L1-Advisors/smart-order-router-sub002/poolset/poolsettest"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	set := pst.Set(
		[]uniswapv2.Pool{pst.V2(pst.Addr(0x201), pst.WETH, pst.USDC, pst.Exp10(1, 21), pst.Exp10(3, 12))},
		[]uniswapv3.Pool{pst.V3(pst.Addr(0x301), pst.WETH, pst.USDC, 3000, pst.Exp10(5, 16), -196260)},
	)
	path := filepath.Join(t.TempDir(), "pools.json")
	require.NoError(t, poolset.WriteSnapshot(path, set))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(prometheus.NewRegistry())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	snapshot := writeSnapshot(t)

	out, err := run(t, "quote", "--snapshot", snapshot, "--log-level", "error", "--in", "WETH", "--out", "usdc", "--amount", "10")
	require.NoError(t, err)

	var view swapView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, pst.Block, view.Block)
	assert.Equal(t, "10", view.Amount)
	assert.NotEmpty(t, view.Routes)
	assert.NotEqual(t, "0", view.Quote)
}

func TestQuoteCommand_Errors(t *testing.T) {
	snapshot := writeSnapshot(t)

	_, err := run(t, "quote", "--snapshot", snapshot, "--in", "WETH", "--out", "WBTC", "--amount", "1")
	assert.ErrorContains(t, err, "unknown token")

	_, err = run(t, "quote", "--snapshot", snapshot, "--in", "WETH", "--out", "USDC", "--amount", "1", "--type", "sideways")
	assert.ErrorIs(t, err, routing.ErrInvalidConfiguration)

	_, err = run(t, "quote", "--in", "WETH", "--out", "USDC", "--amount", "1")
	assert.ErrorContains(t, err, "snapshot_path is required")
}

func TestRoutesCommand(t *testing.T) {
	out, err := run(t, "routes", "--snapshot", writeSnapshot(t), "--in", "WETH", "--out", "USDC", "--amount", "1", "--protocols", "V3")
	require.NoError(t, err)
	assert.Contains(t, out, "[V3] WETH -> USDC")
	assert.Contains(t, out, "1 routes over 2 pools at block 1000")
}
