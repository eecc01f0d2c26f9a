package quoter

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the chunking and gas model of the engine.
type Config struct {
	// QuoterAddress is the QuoterV2 contract used for V3 routes.
	QuoterAddress common.Address `yaml:"quoter_address" mapstructure:"quoter_address"`
	// MixedQuoterAddress is the MixedRouteQuoterV1 contract used for mixed routes.
	MixedQuoterAddress common.Address `yaml:"mixed_quoter_address" mapstructure:"mixed_quoter_address"`

	// GasCeiling is the gas budget of one batch.
	GasCeiling uint64 `yaml:"gas_ceiling" mapstructure:"gas_ceiling"`
	// The per entry estimate is BaseGas + hops*(PerHopGas + AssumedTicksPerHop*PerTickGas).
	BaseGas            uint64 `yaml:"base_gas" mapstructure:"base_gas"`
	PerHopGas          uint64 `yaml:"per_hop_gas" mapstructure:"per_hop_gas"`
	PerTickGas         uint64 `yaml:"per_tick_gas" mapstructure:"per_tick_gas"`
	AssumedTicksPerHop uint64 `yaml:"assumed_ticks_per_hop" mapstructure:"assumed_ticks_per_hop"`

	// MaxRetryRounds bounds how often a failing chunk is halved.
	MaxRetryRounds int `yaml:"max_retry_rounds" mapstructure:"max_retry_rounds"`
	// MaxConcurrentChunks bounds the in-flight batches of one request.
	MaxConcurrentChunks int `yaml:"max_concurrent_chunks" mapstructure:"max_concurrent_chunks"`
}

// DefaultConfig uses the mainnet quoter deployments.
func DefaultConfig() Config {
	return Config{
		QuoterAddress:       common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		MixedQuoterAddress:  common.HexToAddress("0x84E44095eeBfEC7793Cd7d5b57B7e401D7f1cA2E"),
		GasCeiling:          50_000_000,
		BaseGas:             60_000,
		PerHopGas:           80_000,
		PerTickGas:          30_000,
		AssumedTicksPerHop:  10,
		MaxRetryRounds:      5,
		MaxConcurrentChunks: 8,
	}
}

func (c *Config) validate() error {
	if c.QuoterAddress == (common.Address{}) {
		return errors.New("config: QuoterAddress is required")
	}
	if c.MixedQuoterAddress == (common.Address{}) {
		return errors.New("config: MixedQuoterAddress is required")
	}
	if c.GasCeiling == 0 {
		return errors.New("config: GasCeiling must be greater than 0")
	}
	if c.MaxRetryRounds < 0 {
		return errors.New("config: MaxRetryRounds must not be negative")
	}
	if c.MaxConcurrentChunks < 1 {
		return errors.New("config: MaxConcurrentChunks must be greater than 0")
	}
	return nil
}

// entryGas is the estimated cost of quoting a route of the given length.
func (c *Config) entryGas(hops int) uint64 {
	h := uint64(hops)
	return c.BaseGas + h*(c.PerHopGas+c.AssumedTicksPerHop*c.PerTickGas)
}
