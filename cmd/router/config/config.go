package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/gas"
	"github.com/L1-Advisors/smart-order-router-sub002/routing/quoter"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides, e.g. SOR_RPC_URL or
// SOR_ROUTING_MAX_HOPS.
const EnvPrefix = "SOR"

type RouterConfig struct {
	ChainID uint64 `yaml:"chain_id"`
	// RPCURL, when set, quotes against a node instead of the local simulator.
	RPCURL string `yaml:"rpc_url"`
	// FollowHead pins requests to the node's head block instead of the
	// snapshot block.
	FollowHead bool `yaml:"follow_head"`

	SnapshotPath         string `yaml:"snapshot_path"`
	FallbackSnapshotPath string `yaml:"fallback_snapshot_path"`
	PoolCacheSize        int    `yaml:"pool_cache_size"`

	// GasPriceWei is used when no RPC URL is configured.
	GasPriceWei string `yaml:"gas_price_wei"`

	TokenFees map[common.Address]tokenregistry.TransferFee `yaml:"token_fees"`

	Routing routing.Config `yaml:"routing"`
	Quoter  quoter.Config  `yaml:"quoter"`
	Gas     gas.Config     `yaml:"gas"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *RouterConfig {
	return &RouterConfig{
		ChainID:       1,
		PoolCacheSize: 256,
		GasPriceWei:   "30000000000",
		Routing:       routing.DefaultConfig(),
		Quoter:        quoter.DefaultConfig(),
		Gas:           gas.DefaultConfig(),
		LogLevel:      "info",
	}
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// over the defaults.
func LoadConfig(path string) (*RouterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewViper returns a viper instance reading SOR_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies the keys set in v, from bound flags or the
// environment, over cfg.
func ApplyOverrides(cfg *RouterConfig, v *viper.Viper) error {
	if v.IsSet("rpc_url") {
		cfg.RPCURL = v.GetString("rpc_url")
	}
	if v.IsSet("follow_head") {
		cfg.FollowHead = v.GetBool("follow_head")
	}
	if v.IsSet("snapshot_path") {
		cfg.SnapshotPath = v.GetString("snapshot_path")
	}
	if v.IsSet("gas_price_wei") {
		cfg.GasPriceWei = v.GetString("gas_price_wei")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("routing.max_hops") {
		cfg.Routing.MaxHops = v.GetInt("routing.max_hops")
	}
	if v.IsSet("routing.min_splits") {
		cfg.Routing.MinSplits = v.GetInt("routing.min_splits")
	}
	if v.IsSet("routing.max_splits") {
		cfg.Routing.MaxSplits = v.GetInt("routing.max_splits")
	}
	if v.IsSet("routing.distribution_percent") {
		cfg.Routing.DistributionPercent = v.GetInt("routing.distribution_percent")
	}
	if v.IsSet("routing.deadline") {
		cfg.Routing.Deadline = v.GetDuration("routing.deadline")
	}
	if v.IsSet("routing.block_number") {
		cfg.Routing.BlockNumber = v.GetUint64("routing.block_number")
	}
	if v.IsSet("routing.enable_fee_on_transfer") {
		cfg.Routing.EnableFeeOnTransfer = v.GetBool("routing.enable_fee_on_transfer")
	}
	if v.IsSet("routing.allowed_protocols") {
		var protocols []routing.Protocol
		for _, s := range v.GetStringSlice("routing.allowed_protocols") {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part == "" {
					continue
				}
				p, err := routing.ParseProtocol(part)
				if err != nil {
					return err
				}
				protocols = append(protocols, p)
			}
		}
		cfg.Routing.AllowedProtocols = protocols
	}
	return nil
}

// Validate checks the parts of the file the binary itself needs.
func (c *RouterConfig) Validate() error {
	if c.SnapshotPath == "" {
		return errors.New("config: snapshot_path is required")
	}
	if c.RPCURL == "" {
		if _, err := c.GasPrice(); err != nil {
			return err
		}
	}
	if c.FollowHead && c.RPCURL == "" {
		return errors.New("config: follow_head needs rpc_url")
	}
	return c.Routing.Validate()
}

// GasPrice parses GasPriceWei.
func (c *RouterConfig) GasPrice() (*big.Int, error) {
	price, ok := new(big.Int).SetString(c.GasPriceWei, 10)
	if !ok || price.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid gas_price_wei %q", c.GasPriceWei)
	}
	return price, nil
}
