package entities

import "github.com/shopspring/decimal"

// Holding is one long-term position in the demat account
type Holding struct {
	TradingSymbol      string
	Exchange           string
	InstrumentToken    uint32
	ISIN               string
	Product            string
	Quantity           int
	T1Quantity         int
	RealisedQuantity   int
	CollateralQuantity int
	CollateralType     string
	Price              decimal.Decimal
	AveragePrice       decimal.Decimal
	LastPrice          decimal.Decimal
	PnL                decimal.Decimal
}

// TotalQuantity counts settled and T1 shares together
func (h Holding) TotalQuantity() int {
	return h.Quantity + h.T1Quantity
}

// Invested is the cost basis of the whole position
func (h Holding) Invested() decimal.Decimal {
	return h.AveragePrice.Mul(decimal.NewFromInt(int64(h.TotalQuantity())))
}

// CurrentValue is the position valued at the last traded price
func (h Holding) CurrentValue() decimal.Decimal {
	return h.LastPrice.Mul(decimal.NewFromInt(int64(h.TotalQuantity())))
}
