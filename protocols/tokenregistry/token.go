package tokenregistry

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// MaxFeeBps is 100% expressed in basis points.
const MaxFeeBps = 10_000

// TransferFee carries the fee-on-transfer tax of a token. A zero value means
// the token transfers without a tax.
type TransferFee struct {
	BuyFeeBps  uint16 `json:"buyFeeBps" yaml:"buy_fee_bps"`
	SellFeeBps uint16 `json:"sellFeeBps" yaml:"sell_fee_bps"`
}

// IsZero reports whether neither direction is taxed.
func (f TransferFee) IsZero() bool {
	return f.BuyFeeBps == 0 && f.SellFeeBps == 0
}

// Token is a chain-qualified ERC20 description.
type Token struct {
	ChainID  uint64         `json:"chainId"`
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`

	// Fee is only populated when fee-on-transfer data was fetched.
	Fee *TransferFee `json:"fee,omitempty"`
}

// Equal compares tokens by chain and address only.
func (t Token) Equal(o Token) bool {
	return t.ChainID == o.ChainID && t.Address == o.Address
}

// String returns the symbol when known and the hex address otherwise.
func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// SortsBefore mirrors the on-chain token0/token1 ordering.
func (t Token) SortsBefore(o Token) bool {
	return bytes.Compare(t.Address.Bytes(), o.Address.Bytes()) < 0
}

// OneUnit returns 10^decimals.
func (t Token) OneUnit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
}

// FormatAmount renders a raw integer amount with the token's decimals,
// e.g. 1500000 with 6 decimals becomes "1.5".
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseAmount is the inverse of FormatAmount. Extra fractional digits are truncated.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}
