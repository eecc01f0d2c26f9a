package poolset

import (
	"math/big"
	"path/filepath"
	"testing"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
	usdc = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	dai  = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI", Decimals: 18}
)

func testSnapshot() Snapshot {
	return Snapshot{
		ChainID: 1,
		Block:   Block{Number: 100},
		V2: []uniswapv2.Pool{
			{Address: common.HexToAddress("0x02"), Token0: usdc, Token1: weth, Reserve0: big.NewInt(1000), Reserve1: big.NewInt(2000), FeeBps: 30},
			{Address: common.HexToAddress("0x01"), Token0: dai, Token1: usdc, Reserve0: big.NewInt(1000), Reserve1: big.NewInt(1000), FeeBps: 30},
		},
		V3: []uniswapv3.Pool{
			{Address: common.HexToAddress("0x03"), Token0: usdc, Token1: weth, Fee: 500, Liquidity: big.NewInt(1), SqrtPriceX96: big.NewInt(1)},
		},
	}
}

func TestNew_IndexesAndSorts(t *testing.T) {
	s := New(testSnapshot())

	assert.Equal(t, uint64(100), s.BlockNumber())
	assert.Equal(t, 3, s.Len())

	pools := s.V2Pools()
	require.Len(t, pools, 2)
	assert.Equal(t, common.HexToAddress("0x01"), pools[0].Address, "pools are ordered by address")

	_, ok := s.V3Pool(common.HexToAddress("0x03"))
	assert.True(t, ok)
	_, ok = s.V2Pool(common.HexToAddress("0x03"))
	assert.False(t, ok)

	tok, ok := s.Token(dai.Address)
	require.True(t, ok, "tokens are registered from pools")
	assert.Equal(t, "DAI", tok.Symbol)
	assert.Len(t, s.Tokens(), 3)
}

func TestQuotablePools(t *testing.T) {
	snap := testSnapshot()
	snap.V2 = append(snap.V2,
		uniswapv2.Pool{Address: common.HexToAddress("0x04"), Token0: usdc, Token1: weth, Reserve0: big.NewInt(5000), Reserve1: big.NewInt(1), FeeBps: 30},
		uniswapv2.Pool{Address: common.HexToAddress("0x05"), Token0: dai, Token1: usdc, Reserve0: big.NewInt(1000), Reserve1: big.NewInt(1000), FeeBps: 30},
	)
	snap.V3 = append(snap.V3,
		uniswapv3.Pool{Address: common.HexToAddress("0x06"), Token0: usdc, Token1: weth, Fee: 500, Liquidity: big.NewInt(7), SqrtPriceX96: big.NewInt(1)},
		uniswapv3.Pool{Address: common.HexToAddress("0x07"), Token0: usdc, Token1: weth, Fee: 3000},
	)

	v2, v3 := New(snap).QuotablePools()

	var got []common.Address
	for _, p := range v2 {
		got = append(got, p.Address)
	}
	// 0x04 is deeper than 0x02; 0x01 wins the tie with 0x05
	assert.Equal(t, []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x04")}, got)

	got = got[:0]
	for _, p := range v3 {
		got = append(got, p.Address)
	}
	// fee tiers are separate keys
	assert.Equal(t, []common.Address{common.HexToAddress("0x06"), common.HexToAddress("0x07")}, got)
}

func TestSelect(t *testing.T) {
	s := New(testSnapshot())

	direct := s.Select([]TokenPair{{A: weth.Address, B: usdc.Address}})
	assert.Equal(t, 2, direct.Len())

	anyDai := s.Select([]TokenPair{{A: dai.Address}})
	assert.Equal(t, 1, anyDai.Len())
	assert.Len(t, anyDai.V2Pools(), 1)

	assert.Same(t, s, s.Select(nil))
	assert.Equal(t, 0, s.Select([]TokenPair{}).Len())
}

func TestMerge(t *testing.T) {
	a := New(testSnapshot()).Select([]TokenPair{{A: dai.Address}})
	b := New(testSnapshot()).Select([]TokenPair{{A: weth.Address}})

	m, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	other := testSnapshot()
	other.Block.Number = 101
	_, err = a.Merge(New(other))
	assert.Error(t, err)
}

func TestWithTransferFees(t *testing.T) {
	s := New(testSnapshot())
	taxed := s.WithTransferFees(map[common.Address]tokenregistry.TransferFee{
		dai.Address: {BuyFeeBps: 100, SellFeeBps: 200},
	})

	p, ok := taxed.V2Pool(common.HexToAddress("0x01"))
	require.True(t, ok)
	require.NotNil(t, p.Token0.Fee)
	assert.Equal(t, uint16(200), p.Token0.Fee.SellFeeBps)
	assert.Nil(t, p.Token1.Fee)

	orig, _ := s.V2Pool(common.HexToAddress("0x01"))
	assert.Nil(t, orig.Token0.Fee, "the source set is not modified")
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, WriteSnapshot(path, New(testSnapshot())))

	s, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), s.BlockNumber())
	assert.Equal(t, 3, s.Len())

	p, ok := s.V2Pool(common.HexToAddress("0x02"))
	require.True(t, ok)
	assert.Equal(t, "2000", p.Reserve1.String())

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, WriteSnapshot(empty, New(Snapshot{Block: Block{Number: 1}})))
	_, err = LoadSnapshot(empty)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}
