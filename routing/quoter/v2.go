package quoter

import (
	"fmt"
	"math/big"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	uniswapv2calculator "github.com/L1-Advisors/smart-order-router-sub002/protocols/uniswapv2/calculator"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
)

// feeRules says which transfer taxes apply to a constant-product route.
type feeRules struct {
	enabled       bool
	skipOutputBuy bool
}

func sellFee(t tokenregistry.Token) uint16 {
	if t.Fee == nil {
		return 0
	}
	return t.Fee.SellFeeBps
}

func buyFee(t tokenregistry.Token) uint16 {
	if t.Fee == nil {
		return 0
	}
	return t.Fee.BuyFeeBps
}

// buyTaxed reports whether the output of hop i is reduced by the buy tax of
// the token it delivers.
func (f feeRules) buyTaxed(hop, hops int) bool {
	if !f.enabled {
		return false
	}
	return !(f.skipOutputBuy && hop == hops-1)
}

// sellTaxed reports whether the input of hop i is reduced by the sell tax of
// the token it receives. The first leg is always the untaxed nominal amount.
func (f feeRules) sellTaxed(hop int) bool {
	return f.enabled && hop > 0
}

// quoteV2ExactIn walks the route forward.
func quoteV2ExactIn(r routing.Route, amountIn *big.Int, rules feeRules) (*big.Int, error) {
	amount := new(big.Int).Set(amountIn)
	for i, h := range r.Hops {
		if h.V2 == nil {
			return nil, fmt.Errorf("hop %d of %s is not a constant-product pool", i, r)
		}
		in, out := r.Tokens[i], r.Tokens[i+1]
		if rules.sellTaxed(i) {
			amount = uniswapv2calculator.ApplyTransferFee(amount, sellFee(in))
		}
		next, err := uniswapv2calculator.GetAmountOut(amount, in.Address, out.Address, *h.V2)
		if err != nil {
			return nil, fmt.Errorf("hop %d of %s: %w", i, r, err)
		}
		if rules.buyTaxed(i, len(r.Hops)) {
			next = uniswapv2calculator.ApplyTransferFee(next, buyFee(out))
		}
		if next.Sign() == 0 {
			return nil, fmt.Errorf("hop %d of %s: %w", i, r, uniswapv2calculator.ErrInsufficientLiquidity)
		}
		amount = next
	}
	return amount, nil
}

// quoteV2ExactOut walks the route backwards, grossing up each amount for
// the taxes it will pay on the way.
func quoteV2ExactOut(r routing.Route, amountOut *big.Int, rules feeRules) (*big.Int, error) {
	amount := new(big.Int).Set(amountOut)
	for i := len(r.Hops) - 1; i >= 0; i-- {
		h := r.Hops[i]
		if h.V2 == nil {
			return nil, fmt.Errorf("hop %d of %s is not a constant-product pool", i, r)
		}
		in, out := r.Tokens[i], r.Tokens[i+1]
		if rules.buyTaxed(i, len(r.Hops)) {
			amount = uniswapv2calculator.GrossUpTransferFee(amount, buyFee(out))
			if amount == nil {
				return nil, fmt.Errorf("hop %d of %s: %s buy tax takes the whole amount", i, r, out)
			}
		}
		prev, err := uniswapv2calculator.GetAmountIn(amount, in.Address, out.Address, *h.V2)
		if err != nil {
			return nil, fmt.Errorf("hop %d of %s: %w", i, r, err)
		}
		if rules.sellTaxed(i) {
			prev = uniswapv2calculator.GrossUpTransferFee(prev, sellFee(in))
			if prev == nil {
				return nil, fmt.Errorf("hop %d of %s: %s sell tax takes the whole amount", i, r, in)
			}
		}
		amount = prev
	}
	return amount, nil
}
