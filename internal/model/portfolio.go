package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSummary aggregates active and historical holdings. NetProfit is
// realized P&L minus total tax; brokerage is deliberately not subtracted here
// (asymmetric from ProfitAllocation.NetAmount).
type PortfolioSummary struct {
	ActiveLots       int
	TotalInvestment  decimal.Decimal
	CurrentValue     decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
	RealizedPnL      decimal.Decimal
	ShortTermTax     decimal.Decimal
	LongTermTax      decimal.Decimal
	TotalTax         decimal.Decimal
	NetProfit        decimal.Decimal
}

type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction is a synthetic history row materialized from a holding: every
// lot yields a BUY row, inactive lots additionally yield a SELL row.
type Transaction struct {
	Type           TransactionType
	InstrumentName string
	Price          decimal.Decimal
	Quantity       int
	Amount         decimal.Decimal
	Date           time.Time
	Profit         decimal.Decimal // sell rows only
}

// PortfolioReport bundles everything the xlsx report renders.
type PortfolioReport struct {
	GeneratedAt  time.Time
	Budget       *Budget
	Summary      PortfolioSummary
	Holdings     []Holding
	Transactions []Transaction
}
