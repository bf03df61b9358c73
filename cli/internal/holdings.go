package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/kitesession/internal/domain/entities"
)

func newHoldingsCommand() *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use:   "holdings",
		Short: "List demat holdings",
		Long: `Acquire a session (logging in if needed) and list the account's holdings
with cost basis, current value and P&L.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			s, err := newSession(cc)
			if err != nil {
				return err
			}

			if _, err := acquire(cmd.Context(), s); err != nil {
				return err
			}

			holdings, err := s.remote.Holdings(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list holdings: %w", err)
			}
			cc.Logger.Info("fetched holdings", "count", len(holdings))

			if err := sortHoldings(holdings, sortBy); err != nil {
				return err
			}
			return printMarkdown(cc, holdingsMarkdown(holdings))
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "symbol", "Sort by: symbol, value, pnl")

	return cmd
}

func sortHoldings(holdings []entities.Holding, by string) error {
	var less func(a, b entities.Holding) bool
	switch by {
	case "symbol", "":
		less = func(a, b entities.Holding) bool { return a.TradingSymbol < b.TradingSymbol }
	case "value":
		less = func(a, b entities.Holding) bool { return a.CurrentValue().GreaterThan(b.CurrentValue()) }
	case "pnl":
		less = func(a, b entities.Holding) bool { return a.PnL.GreaterThan(b.PnL) }
	default:
		return fmt.Errorf("unknown sort key %q (want symbol, value or pnl)", by)
	}
	sort.SliceStable(holdings, func(i, j int) bool { return less(holdings[i], holdings[j]) })
	return nil
}

// holdingsMarkdown renders holdings as a markdown table with a totals row
func holdingsMarkdown(holdings []entities.Holding) string {
	var b strings.Builder
	b.WriteString("# Holdings\n\n")

	if len(holdings) == 0 {
		b.WriteString("No holdings.\n")
		return b.String()
	}

	b.WriteString("| Symbol | Exchange | ISIN | Qty | T1 | Avg price | LTP | Invested | Value | P&L |\n")
	b.WriteString("|---|---|---|--:|--:|--:|--:|--:|--:|--:|\n")

	invested, value, pnl := decimal.Zero, decimal.Zero, decimal.Zero
	for _, h := range holdings {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s | %s | %s | %s | %s |\n",
			h.TradingSymbol,
			h.Exchange,
			h.ISIN,
			h.Quantity,
			h.T1Quantity,
			h.AveragePrice.StringFixed(2),
			h.LastPrice.StringFixed(2),
			h.Invested().StringFixed(2),
			h.CurrentValue().StringFixed(2),
			h.PnL.StringFixed(2),
		)
		invested = invested.Add(h.Invested())
		value = value.Add(h.CurrentValue())
		pnl = pnl.Add(h.PnL)
	}
	fmt.Fprintf(&b, "| **Total** | | | | | | | **%s** | **%s** | **%s** |\n",
		invested.StringFixed(2), value.StringFixed(2), pnl.StringFixed(2))

	if invested.IsPositive() {
		ret := value.Sub(invested).Div(invested).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(&b, "\nOverall return: %s%%\n", ret.StringFixed(2))
	}

	return b.String()
}
