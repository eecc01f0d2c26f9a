package uniswapv2

import (
	"math/big"
	"testing"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	weth = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Symbol: "WETH", Decimals: 18}
	dai  = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI", Decimals: 18}
)

func newBigIntFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to set string for big.Int")
	}
	return n
}

func usdcWethPair(feeBps uint16) uniswapv2.Pool {
	return uniswapv2.Pool{
		Address:  common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		Token0:   usdc,
		Token1:   weth,
		Reserve0: big.NewInt(100_000_000),                     // 100 USDC
		Reserve1: newBigIntFromString("50000000000000000000"), // 50 WETH
		FeeBps:   feeBps,
	}
}

func TestGetAmountOut(t *testing.T) {
	emptyPair := usdcWethPair(30)
	emptyPair.Reserve0 = big.NewInt(0)

	testCases := []struct {
		name           string
		amountIn       *big.Int
		tokenIn        common.Address
		tokenOut       common.Address
		pool           uniswapv2.Pool
		expectedAmount *big.Int
		expectedErr    error
	}{
		{
			name:           "token0 to token1",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc.Address,
			tokenOut:       weth.Address,
			pool:           usdcWethPair(30),
			expectedAmount: newBigIntFromString("493579017198530649"),
		},
		{
			name:           "token1 to token0",
			amountIn:       newBigIntFromString("1000000000000000000"),
			tokenIn:        weth.Address,
			tokenOut:       usdc.Address,
			pool:           usdcWethPair(30),
			expectedAmount: big.NewInt(1955016),
		},
		{
			name:           "one percent fee",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc.Address,
			tokenOut:       weth.Address,
			pool:           usdcWethPair(100),
			expectedAmount: newBigIntFromString("490147539360332706"),
		},
		{
			name:           "empty reserve quotes zero",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc.Address,
			tokenOut:       weth.Address,
			pool:           emptyPair,
			expectedAmount: big.NewInt(0),
		},
		{
			name:        "nil amount",
			tokenIn:     usdc.Address,
			tokenOut:    weth.Address,
			pool:        usdcWethPair(30),
			expectedErr: ErrNilAmount,
		},
		{
			name:        "negative amount",
			amountIn:    big.NewInt(-100),
			tokenIn:     usdc.Address,
			tokenOut:    weth.Address,
			pool:        usdcWethPair(30),
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "token not in pair",
			amountIn:    big.NewInt(1_000_000),
			tokenIn:     dai.Address,
			tokenOut:    weth.Address,
			pool:        usdcWethPair(30),
			expectedErr: ErrTokenMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.tokenIn, tc.tokenOut, tc.pool)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expectedAmount.Cmp(amountOut), "expected %s, got %s", tc.expectedAmount, amountOut)
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name           string
		amountOut      *big.Int
		tokenIn        common.Address
		tokenOut       common.Address
		expectedAmount *big.Int
		expectedErr    error
	}{
		{
			name:           "token0 to token1",
			amountOut:      newBigIntFromString("493579017198530649"),
			tokenIn:        usdc.Address,
			tokenOut:       weth.Address,
			expectedAmount: big.NewInt(1_000_000),
		},
		{
			name:           "token1 to token0",
			amountOut:      big.NewInt(1955016),
			tokenIn:        weth.Address,
			tokenOut:       usdc.Address,
			expectedAmount: newBigIntFromString("999999498234537320"),
		},
		{
			name:        "nil amount",
			tokenIn:     usdc.Address,
			tokenOut:    weth.Address,
			expectedErr: ErrNilAmount,
		},
		{
			name:        "more than the reserve",
			amountOut:   newBigIntFromString("60000000000000000000"),
			tokenIn:     usdc.Address,
			tokenOut:    weth.Address,
			expectedErr: ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountIn, err := GetAmountIn(tc.amountOut, tc.tokenIn, tc.tokenOut, usdcWethPair(30))
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expectedAmount.Cmp(amountIn), "expected %s, got %s", tc.expectedAmount, amountIn)
		})
	}
}

func TestGetAmountOut_DoesNotMutatePool(t *testing.T) {
	pool := usdcWethPair(30)
	r0 := new(big.Int).Set(pool.Reserve0)
	r1 := new(big.Int).Set(pool.Reserve1)

	first, err := GetAmountOut(big.NewInt(5_000_000), usdc.Address, weth.Address, pool)
	require.NoError(t, err)
	second, err := GetAmountOut(big.NewInt(5_000_000), usdc.Address, weth.Address, pool)
	require.NoError(t, err)

	assert.Equal(t, first.String(), second.String())
	assert.Zero(t, r0.Cmp(pool.Reserve0))
	assert.Zero(t, r1.Cmp(pool.Reserve1))
}

func TestTransferFee(t *testing.T) {
	t.Run("apply", func(t *testing.T) {
		assert.Equal(t, int64(970), ApplyTransferFee(big.NewInt(1000), 300).Int64())
		assert.Equal(t, int64(1000), ApplyTransferFee(big.NewInt(1000), 0).Int64())
		assert.Equal(t, int64(0), ApplyTransferFee(big.NewInt(1000), 10000).Int64())
		assert.Equal(t, int64(98), ApplyTransferFee(big.NewInt(101), 200).Int64(), "rounds down")
	})

	t.Run("gross up is the minimal covering amount", func(t *testing.T) {
		for _, bps := range []uint16{1, 50, 300, 2500, 9999} {
			for _, want := range []int64{1, 7, 970, 123456} {
				gross := GrossUpTransferFee(big.NewInt(want), bps)
				require.NotNil(t, gross)
				assert.GreaterOrEqual(t, ApplyTransferFee(gross, bps).Int64(), want)

				less := new(big.Int).Sub(gross, big.NewInt(1))
				assert.Less(t, ApplyTransferFee(less, bps).Int64(), want)
			}
		}
		assert.Nil(t, GrossUpTransferFee(big.NewInt(1), 10000))
	})
}
