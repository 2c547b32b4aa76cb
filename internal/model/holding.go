package model

import (
	"time"

	"github.com/avoronin/dma_advisor_bot/internal/calendar"
	"github.com/shopspring/decimal"
)

// Holding is a single buy lot. It is created on buy execution and mutated
// exactly once on sell execution (active flips to false, sell price/date get
// stamped); it is never deleted.
type Holding struct {
	HoldingID      int64
	UserID         int64
	InstrumentID   int64
	InstrumentName string
	BuyPrice       decimal.Decimal
	Quantity       int
	BuyDate        time.Time
	SellPrice      decimal.Decimal // zero while active
	SellDate       time.Time       // zero while active
	Active         bool
}

// InvestedAmount returns buyPrice * quantity.
func (h Holding) InvestedAmount() decimal.Decimal {
	return h.BuyPrice.Mul(decimal.NewFromInt(int64(h.Quantity)))
}

// Profit returns (sellPrice - buyPrice) * quantity. Only meaningful once the
// holding is inactive.
func (h Holding) Profit() decimal.Decimal {
	return h.SellPrice.Sub(h.BuyPrice).Mul(decimal.NewFromInt(int64(h.Quantity)))
}

// ProfitPercentAt returns the percent gain of the lot at the given price.
// A zero buy price yields 0.
func (h Holding) ProfitPercentAt(price decimal.Decimal) decimal.Decimal {
	if h.BuyPrice.IsZero() {
		return decimal.Zero
	}
	return price.Sub(h.BuyPrice).Div(h.BuyPrice).Mul(hundred)
}

// HoldingDays returns the calendar-day holding period used for tax
// classification. For active holdings it is counted up to asOf.
func (h Holding) HoldingDays(asOf time.Time) int {
	end := h.SellDate
	if h.Active || end.IsZero() {
		end = asOf
	}
	return calendar.DaysBetween(h.BuyDate, end)
}
