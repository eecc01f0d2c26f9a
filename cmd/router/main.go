package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/L1-Advisors/smart-order-router-sub002/cmd/router/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(prometheus.DefaultRegisterer)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries what every subcommand shares.
type cli struct {
	cfgFile string
	v       *viper.Viper
	reg     prometheus.Registerer
}

func newRootCmd(reg prometheus.Registerer) *cobra.Command {
	c := &cli{v: config.NewViper(), reg: reg}
	root := &cobra.Command{
		Use:           "sor",
		Short:         "Smart order router for Uniswap V2/V3 pools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "path to the YAML configuration file")
	flags.String("rpc", "", "node URL; quotes are simulated locally when empty")
	flags.String("snapshot", "", "pool snapshot JSON file")
	flags.Uint64("block", 0, "block number to pin the request to")
	flags.Int("max-hops", 0, "maximum hops per route")
	flags.Int("max-splits", 0, "maximum routes in a split")
	flags.StringSlice("protocols", nil, "allowed protocols, e.g. V2,V3,MIXED")
	flags.String("log-level", "", "debug, info, warn or error")

	for key, flag := range map[string]string{
		"rpc_url":                   "rpc",
		"snapshot_path":             "snapshot",
		"routing.block_number":      "block",
		"routing.max_hops":          "max-hops",
		"routing.max_splits":        "max-splits",
		"routing.allowed_protocols": "protocols",
		"log_level":                 "log-level",
	} {
		if err := c.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag: %v\n", err)
		}
	}

	root.AddCommand(newQuoteCmd(c), newRoutesCmd(c))
	return root
}

// load reads the file, applies flag and environment overrides and builds
// the root logger.
func (c *cli) load() (*config.RouterConfig, *slog.Logger, error) {
	cfg := config.Default()
	if c.cfgFile != "" {
		var err error
		if cfg, err = config.LoadConfig(c.cfgFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if err := config.ApplyOverrides(cfg, c.v); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("config: invalid log_level %q", cfg.LogLevel)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}
