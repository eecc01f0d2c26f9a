package routing

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds the per-request routing parameters. It is passed by value
// and never modified after validation.
type Config struct {
	// Breadth caps of the candidate pool selection.
	TopNDirect            int `yaml:"top_n_direct" mapstructure:"top_n_direct"`
	TopNTokenInOut        int `yaml:"top_n_token_in_out" mapstructure:"top_n_token_in_out"`
	TopNWithEachBaseToken int `yaml:"top_n_with_each_base_token" mapstructure:"top_n_with_each_base_token"`
	TopNSecondHop         int `yaml:"top_n_second_hop" mapstructure:"top_n_second_hop"`

	BaseTokens []common.Address `yaml:"base_tokens" mapstructure:"base_tokens"`

	MaxHops             int        `yaml:"max_hops" mapstructure:"max_hops"`
	MinSplits           int        `yaml:"min_splits" mapstructure:"min_splits"`
	MaxSplits           int        `yaml:"max_splits" mapstructure:"max_splits"`
	DistributionPercent int        `yaml:"distribution_percent" mapstructure:"distribution_percent"`
	AllowedProtocols    []Protocol `yaml:"allowed_protocols" mapstructure:"allowed_protocols"`

	// MaxSplitRoutes caps how many of the best quotes per percent the
	// optimizer considers.
	MaxSplitRoutes int `yaml:"max_split_routes" mapstructure:"max_split_routes"`
	// TieEpsilonPPM is the relative improvement, in parts per million of the
	// incumbent, a larger split needs before it replaces a smaller one.
	TieEpsilonPPM uint64 `yaml:"tie_epsilon_ppm" mapstructure:"tie_epsilon_ppm"`

	EnableFeeOnTransfer bool `yaml:"enable_fee_on_transfer" mapstructure:"enable_fee_on_transfer"`
	// SkipOutputTokenBuyFee leaves the final hop output untaxed even when
	// the output token has a buy fee.
	SkipOutputTokenBuyFee bool `yaml:"skip_output_token_buy_fee" mapstructure:"skip_output_token_buy_fee"`

	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline"`
	// BlockNumber pins the request to a block. Zero means latest.
	BlockNumber uint64 `yaml:"block_number" mapstructure:"block_number"`
}

// DefaultConfig mirrors the mainnet defaults of the Uniswap routing API.
func DefaultConfig() Config {
	return Config{
		TopNDirect:            2,
		TopNTokenInOut:        3,
		TopNWithEachBaseToken: 3,
		TopNSecondHop:         1,
		MaxHops:               3,
		MinSplits:             1,
		MaxSplits:             3,
		DistributionPercent:   5,
		AllowedProtocols:      []Protocol{ProtocolV2, ProtocolV3, ProtocolMixed},
		MaxSplitRoutes:        50,
		TieEpsilonPPM:         1,
		Deadline:              10 * time.Second,
	}
}

// Validate rejects contradictory parameters before any work is done.
func (c Config) Validate() error {
	if c.MaxHops < 1 {
		return fmt.Errorf("%w: max hops must be at least 1, got %d", ErrInvalidConfiguration, c.MaxHops)
	}
	if c.TopNDirect < 0 || c.TopNTokenInOut < 0 || c.TopNWithEachBaseToken < 0 || c.TopNSecondHop < 0 {
		return fmt.Errorf("%w: breadth caps must not be negative", ErrInvalidConfiguration)
	}
	if c.DistributionPercent <= 0 || c.DistributionPercent > 100 || 100%c.DistributionPercent != 0 {
		return fmt.Errorf("%w: distribution percent %d does not divide 100", ErrInvalidConfiguration, c.DistributionPercent)
	}
	if c.MinSplits < 1 {
		return fmt.Errorf("%w: min splits must be at least 1, got %d", ErrInvalidConfiguration, c.MinSplits)
	}
	if c.MaxSplits < c.MinSplits {
		return fmt.Errorf("%w: max splits %d is below min splits %d", ErrInvalidConfiguration, c.MaxSplits, c.MinSplits)
	}
	if buckets := 100 / c.DistributionPercent; c.MinSplits > buckets {
		return fmt.Errorf("%w: min splits %d exceeds the %d buckets of %d%%", ErrInvalidConfiguration, c.MinSplits, buckets, c.DistributionPercent)
	}
	if len(c.AllowedProtocols) == 0 {
		return fmt.Errorf("%w: no protocols allowed", ErrInvalidConfiguration)
	}
	for _, p := range c.AllowedProtocols {
		if p < ProtocolV2 || p > ProtocolMixed {
			return fmt.Errorf("%w: unknown protocol %s", ErrInvalidConfiguration, p)
		}
	}
	if c.MaxSplitRoutes < 1 {
		return fmt.Errorf("%w: max split routes must be at least 1", ErrInvalidConfiguration)
	}
	if c.Deadline < 0 {
		return fmt.Errorf("%w: negative deadline", ErrInvalidConfiguration)
	}
	return nil
}

// Allows reports whether routes of protocol p may be returned.
func (c Config) Allows(p Protocol) bool {
	for _, a := range c.AllowedProtocols {
		if a == p {
			return true
		}
	}
	return false
}

// Percents returns [d, 2d, ..., 100].
func Percents(distributionPercent int) []int {
	if distributionPercent <= 0 {
		return nil
	}
	out := make([]int, 0, 100/distributionPercent)
	for p := distributionPercent; p <= 100; p += distributionPercent {
		out = append(out, p)
	}
	return out
}

// BucketAmounts returns floor(amount*p/100) for every percent.
func BucketAmounts(amount *big.Int, percents []int) []*big.Int {
	out := make([]*big.Int, len(percents))
	for i, p := range percents {
		v := new(big.Int).Mul(amount, big.NewInt(int64(p)))
		out[i] = v.Quo(v, big.NewInt(100))
	}
	return out
}
