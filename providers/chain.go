package providers

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// StaticGasPriceProvider always returns the same price.
type StaticGasPriceProvider struct {
	price *big.Int
}

func NewStaticGasPriceProvider(wei *big.Int) (*StaticGasPriceProvider, error) {
	if wei == nil || wei.Sign() < 0 {
		return nil, errors.New("config: gas price must be non-negative")
	}
	return &StaticGasPriceProvider{price: new(big.Int).Set(wei)}, nil
}

func (p *StaticGasPriceProvider) GasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(p.price), nil
}

// GasPricer is the part of ethclient.Client the gas price provider needs.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// EthGasPriceProvider asks a node for eth_gasPrice.
type EthGasPriceProvider struct {
	client GasPricer
}

func NewEthGasPriceProvider(client GasPricer) *EthGasPriceProvider {
	return &EthGasPriceProvider{client: client}
}

func (p *EthGasPriceProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	return price, nil
}

// HeadReader is the part of ethclient.Client the block provider needs.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthBlockProvider asks a node for eth_blockNumber.
type EthBlockProvider struct {
	client HeadReader
}

func NewEthBlockProvider(client HeadReader) *EthBlockProvider {
	return &EthBlockProvider{client: client}
}

func (p *EthBlockProvider) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block number: %w", err)
	}
	return n, nil
}

// NewEthClientProviders builds the gas price and block providers over one
// node connection.
func NewEthClientProviders(client *ethclient.Client) (*EthGasPriceProvider, *EthBlockProvider) {
	return NewEthGasPriceProvider(client), NewEthBlockProvider(client)
}

// StaticTokenFeeProvider serves a fixed table of transfer taxes.
type StaticTokenFeeProvider struct {
	fees map[common.Address]tokenregistry.TransferFee
}

func NewStaticTokenFeeProvider(fees map[common.Address]tokenregistry.TransferFee) (*StaticTokenFeeProvider, error) {
	out := make(map[common.Address]tokenregistry.TransferFee, len(fees))
	for addr, f := range fees {
		if f.BuyFeeBps > tokenregistry.MaxFeeBps || f.SellFeeBps > tokenregistry.MaxFeeBps {
			return nil, fmt.Errorf("config: transfer fee of %s exceeds %d bps", addr.Hex(), tokenregistry.MaxFeeBps)
		}
		if !f.IsZero() {
			out[addr] = f
		}
	}
	return &StaticTokenFeeProvider{fees: out}, nil
}

func (p *StaticTokenFeeProvider) GetTokenFees(ctx context.Context, tokens []common.Address) (map[common.Address]tokenregistry.TransferFee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[common.Address]tokenregistry.TransferFee)
	for _, t := range tokens {
		if f, ok := p.fees[t]; ok {
			out[t] = f
		}
	}
	return out, nil
}
