package uniswapv2

import (
	"math/big"
)

// ApplyTransferFee returns the amount that arrives after a transfer taxed at
// feeBps: amount * (10000 - feeBps) / 10000, rounded down.
func ApplyTransferFee(amount *big.Int, feeBps uint16) *big.Int {
	if amount == nil {
		return nil
	}
	if feeBps == 0 {
		return new(big.Int).Set(amount)
	}
	if feeBps >= 10000 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10000-int(feeBps))))
	return out.Quo(out, basisPointDivisor)
}

// GrossUpTransferFee is the smallest amount that still delivers at least
// amount after a transfer taxed at feeBps. It returns nil when the tax takes
// everything.
func GrossUpTransferFee(amount *big.Int, feeBps uint16) *big.Int {
	if amount == nil {
		return nil
	}
	if feeBps == 0 {
		return new(big.Int).Set(amount)
	}
	if feeBps >= 10000 {
		return nil
	}
	keep := big.NewInt(int64(10000 - int(feeBps)))
	num := new(big.Int).Mul(amount, basisPointDivisor)
	num.Add(num, keep)
	num.Sub(num, one)
	return num.Quo(num, keep)
}
