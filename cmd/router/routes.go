package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/L1-Advisors/smart-order-router-sub002/router"
	"github.com/spf13/cobra"
)

func newRoutesCmd(c *cli) *cobra.Command {
	var f tradeFlags
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the candidate routes the generator finds, without quoting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger, c.reg)
			if err != nil {
				logger.Error("Failed to initialize router", "error", err)
				return err
			}
			defer a.close()

			req, _, _, err := a.request(cfg, f.in, f.out, f.amount, f.tradeType)
			if err != nil {
				return err
			}
			candidates, err := a.router.Routes(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeRoutes(cmd.OutOrStdout(), candidates)
		},
	}
	f.register(cmd)
	return cmd
}

func writeRoutes(w io.Writer, c *router.Candidates) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tHOPS\tROUTE\tPOOLS\n")
	for i, r := range c.Routes {
		pools := make([]string, 0, len(r.Hops))
		for _, p := range r.Pools() {
			pools = append(pools, p.Hex())
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", i+1, len(r.Hops), r, strings.Join(pools, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d routes over %d pools at block %d\n", len(c.Routes), c.Pools.Len(), c.Pools.BlockNumber())
	return err
}
