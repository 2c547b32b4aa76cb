package model

import "github.com/shopspring/decimal"

type TaxType string

const (
	TaxShortTerm TaxType = "short"
	TaxLongTerm  TaxType = "long"
)

// ProfitAllocation is the derived split of one realized profit. It is never
// stored verbatim; only the reinvestment increment reaches the budget record.
type ProfitAllocation struct {
	Profit             decimal.Decimal
	HoldingDays        int
	TaxType            TaxType
	TaxRate            decimal.Decimal
	TaxAmount          decimal.Decimal
	BrokerageAmount    decimal.Decimal
	ReinvestmentAmount decimal.Decimal
	NetAmount          decimal.Decimal
}
