package v3math

import (
	"sort"

	uniswapv3 "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv3"
)

// NextInitializedTick walks a sorted tick list from tick. Searching down
// (lte) yields the largest initialized tick <= tick; searching up yields the
// smallest one > tick. ok is false when the list runs out.
func NextInitializedTick(ticks []uniswapv3.TickInfo, tick int64, lte bool) (next int64, ok bool) {
	above := sort.Search(len(ticks), func(i int) bool { return ticks[i].Index > tick })
	if lte {
		if above == 0 {
			return 0, false
		}
		return ticks[above-1].Index, true
	}
	if above == len(ticks) {
		return 0, false
	}
	return ticks[above].Index, true
}

// TickAt looks up an initialized tick by index.
func TickAt(ticks []uniswapv3.TickInfo, index int64) (uniswapv3.TickInfo, bool) {
	i := sort.Search(len(ticks), func(i int) bool { return ticks[i].Index >= index })
	if i < len(ticks) && ticks[i].Index == index {
		return ticks[i], true
	}
	return uniswapv3.TickInfo{}, false
}
