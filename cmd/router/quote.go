package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	tokenregistry "github.com/L1-Advisors/smart-order-router-sub002/protocols/tokenregistry"
	"github.com/L1-Advisors/smart-order-router-sub002/routing"
	"github.com/spf13/cobra"
)

type tradeFlags struct {
	in, out, amount, tradeType string
}

func (f *tradeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in, "in", "", "input token address or symbol")
	cmd.Flags().StringVar(&f.out, "out", "", "output token address or symbol")
	cmd.Flags().StringVar(&f.amount, "amount", "", "decimal amount of the fixed side, e.g. 1.5")
	cmd.Flags().StringVar(&f.tradeType, "type", "exactIn", "exactIn or exactOut")
	for _, name := range []string{"in", "out", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func newQuoteCmd(c *cli) *cobra.Command {
	var f tradeFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Find the best single or split route for a swap",
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

			req, tokenIn, tokenOut, err := a.request(cfg, f.in, f.out, f.amount, f.tradeType)
			if err != nil {
				return err
			}
			swap, err := a.router.Route(cmd.Context(), req)
			if err != nil {
				return err
			}
			if swap == nil {
				return fmt.Errorf("%w: %s -> %s", routing.ErrNoRouteFound, tokenIn, tokenOut)
			}
			return writeSwap(cmd.OutOrStdout(), swap, tokenIn, tokenOut)
		},
	}
	f.register(cmd)
	return cmd
}

type legView struct {
	Percent  int      `json:"percent"`
	Route    string   `json:"route"`
	Pools    []string `json:"pools"`
	Amount   string   `json:"amount"`
	Quote    string   `json:"quote"`
	GasUnits uint64   `json:"gasUnits"`
}

type swapView struct {
	Block             uint64    `json:"block"`
	TradeType         string    `json:"tradeType"`
	Amount            string    `json:"amount"`
	Quote             string    `json:"quote"`
	QuoteGasAdjusted  string    `json:"quoteGasAdjusted"`
	EstimatedGasUsed  uint64    `json:"estimatedGasUsed"`
	GasCostInToken    string    `json:"gasCostInToken"`
	GasCostInWei      string    `json:"gasCostInWei"`
	GasCostInGasToken string    `json:"gasCostInGasToken,omitempty"`
	Routes            []legView `json:"routes"`
}

// writeSwap prints the route with amounts in whole token units.
func writeSwap(w io.Writer, swap *routing.SwapRoute, tokenIn, tokenOut tokenregistry.Token) error {
	amountToken, quoteToken := tokenIn, tokenOut
	if swap.TradeType == routing.ExactOutput {
		amountToken, quoteToken = tokenOut, tokenIn
	}
	view := swapView{
		Block:            swap.BlockNumber,
		TradeType:        swap.TradeType.String(),
		Amount:           tokenregistry.FormatAmount(swap.Amount, amountToken.Decimals),
		Quote:            tokenregistry.FormatAmount(swap.Quote, quoteToken.Decimals),
		QuoteGasAdjusted: tokenregistry.FormatAmount(swap.QuoteGasAdjusted, quoteToken.Decimals),
		EstimatedGasUsed: swap.EstimatedGasUsed,
		GasCostInToken:   tokenregistry.FormatAmount(swap.GasCostInToken, quoteToken.Decimals),
		GasCostInWei:     bigString(swap.GasCostInWei),
	}
	if swap.GasCostInGasToken != nil {
		view.GasCostInGasToken = swap.GasCostInGasToken.String()
	}
	for _, leg := range swap.Routes {
		pools := make([]string, 0, len(leg.Route.Hops))
		for _, p := range leg.Route.Pools() {
			pools = append(pools, p.Hex())
		}
		view.Routes = append(view.Routes, legView{
			Percent:  leg.Percent,
			Route:    leg.Route.String(),
			Pools:    pools,
			Amount:   tokenregistry.FormatAmount(leg.Allocated, amountToken.Decimals),
			Quote:    tokenregistry.FormatAmount(leg.Quote, quoteToken.Decimals),
			GasUnits: leg.GasEstimate,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func bigString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
