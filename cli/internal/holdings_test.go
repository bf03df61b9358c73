package cli

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/kitesession/internal/domain/entities"
)

func testHoldings() []entities.Holding {
	return []entities.Holding{
		{
			TradingSymbol: "TCS",
			Exchange:      "NSE",
			Quantity:      1,
			AveragePrice:  decimal.RequireFromString("3000"),
			LastPrice:     decimal.RequireFromString("3300"),
			PnL:           decimal.RequireFromString("300"),
		},
		{
			TradingSymbol: "INFY",
			Exchange:      "NSE",
			Quantity:      10,
			AveragePrice:  decimal.RequireFromString("1400.5"),
			LastPrice:     decimal.RequireFromString("1500.25"),
			PnL:           decimal.RequireFromString("997.5"),
		},
	}
}

func TestHoldingsMarkdown(t *testing.T) {
	md := holdingsMarkdown(testHoldings())

	assert.Contains(t, md, "| TCS | NSE |")
	assert.Contains(t, md, "| 1400.50 | 1500.25 | 14005.00 | 15002.50 | 997.50 |")
	assert.Contains(t, md, "**17005.00** | **18302.50** | **1297.50**")
	assert.Contains(t, md, "Overall return: 7.63%")
}

func TestHoldingsMarkdown_Empty(t *testing.T) {
	assert.Contains(t, holdingsMarkdown(nil), "No holdings.")
}

func TestSortHoldings(t *testing.T) {
	tests := []struct {
		by   string
		want []string
	}{
		{by: "symbol", want: []string{"INFY", "TCS"}},
		{by: "value", want: []string{"INFY", "TCS"}},
		{by: "pnl", want: []string{"INFY", "TCS"}},
	}

	for _, tt := range tests {
		t.Run(tt.by, func(t *testing.T) {
			hs := testHoldings()
			require.NoError(t, sortHoldings(hs, tt.by))
			got := []string{hs[0].TradingSymbol, hs[1].TradingSymbol}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Error(t, sortHoldings(testHoldings(), "colour"))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute"},
		{2*time.Hour + 5*time.Minute, "2 hours and 5 minutes"},
		{26*time.Hour + time.Minute, "1 day, 2 hours and 1 minute"},
		{-3 * time.Minute, "3 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}
