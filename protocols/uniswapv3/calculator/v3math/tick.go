// Package v3math holds the fixed-point helpers behind the concentrated
// liquidity swap simulation: tick and sqrt price conversion, token deltas
// over a price range, the per-range swap step and initialized tick lookup.
package v3math

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"
)

const (
	MinTick int64 = -887272
	MaxTick int64 = 887272
)

var (
	// MinSqrtRatio and MaxSqrtRatio are the sqrt prices at MinTick and MaxTick.
	MinSqrtRatio = big.NewInt(4295128739)
	MaxSqrtRatio = mustDecimal("1461446703485210103287273052203988822378723970342")

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	maxUint256 = new(uint256.Int).Not(new(uint256.Int))
	q128       = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	// tickFactors[i] is 1/sqrt(1.0001^(2^i)) in UQ128.128.
	tickFactors = [20]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

func mustDecimal(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("v3math: bad constant " + s)
	}
	return n
}

// sqrtRatio computes sqrt(1.0001^tick) as a Q64.96, rounded up. The tick
// must already be within [MinTick, MaxTick].
func sqrtRatio(tick int64) *uint256.Int {
	abs := tick
	if abs < 0 {
		abs = -abs
	}
	ratio := new(uint256.Int).Set(q128)
	for bit, factor := range tickFactors {
		if abs&(1<<bit) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	out := new(uint256.Int).Rsh(ratio, 32)
	if ratio.Uint64()&0xffffffff != 0 {
		out.AddUint64(out, 1)
	}
	return out
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96.
func SqrtRatioAtTick(tick int64) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfBounds, tick)
	}
	return sqrtRatio(tick).ToBig(), nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio does not exceed
// sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, fmt.Errorf("%w: %v", ErrSqrtPriceOutOfBounds, sqrtPriceX96)
	}
	target := uint256.MustFromBig(sqrtPriceX96)

	// first offset whose ratio is above the target; MinTick itself never is
	span := int(MaxTick - MinTick + 1)
	above := sort.Search(span, func(i int) bool {
		return sqrtRatio(MinTick + int64(i)).Gt(target)
	})
	return MinTick + int64(above) - 1, nil
}
