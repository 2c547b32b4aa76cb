// Package taxation splits realized profit into tax, brokerage and
// reinvestment portions based on the holding period.
package taxation

import (
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/shopspring/decimal"
)

// ShortTermMaxDays is the calendar-day boundary between short and long-term
// capital gains.
const ShortTermMaxDays = 365

var (
	shortTermTaxRate = decimal.NewFromFloat(0.15)
	longTermTaxRate  = decimal.NewFromFloat(0.125)
	brokerageRate    = decimal.NewFromFloat(0.05)
	reinvestmentRate = decimal.NewFromFloat(0.80)
)

// Allocate splits a realized profit. Returns nil for non-positive profit.
//
// Short-term rates partition the profit exactly (0.15+0.05+0.80). Long-term
// rates sum to 0.975, leaving 2.5% of the profit unaccounted. That asymmetry
// is the policy as shipped; it must not be "fixed" without product sign-off.
func Allocate(profit decimal.Decimal, holdingDays int) *model.ProfitAllocation {
	if !profit.IsPositive() {
		return nil
	}

	taxType := model.TaxLongTerm
	taxRate := longTermTaxRate
	if holdingDays <= ShortTermMaxDays {
		taxType = model.TaxShortTerm
		taxRate = shortTermTaxRate
	}

	taxAmount := profit.Mul(taxRate)
	brokerageAmount := profit.Mul(brokerageRate)

	return &model.ProfitAllocation{
		Profit:             profit,
		HoldingDays:        holdingDays,
		TaxType:            taxType,
		TaxRate:            taxRate,
		TaxAmount:          taxAmount,
		BrokerageAmount:    brokerageAmount,
		ReinvestmentAmount: profit.Mul(reinvestmentRate),
		NetAmount:          profit.Sub(taxAmount).Sub(brokerageAmount),
	}
}
