package model

import (
	"errors"
	"time"

	"github.com/avoronin/dma_advisor_bot/internal/calendar"
	"github.com/shopspring/decimal"
)

// BudgetHorizonDays is the fixed allocation horizon in trading days.
const BudgetHorizonDays = 50

var (
	MinTotalBudget = decimal.NewFromInt(5000)
	MinTopUpAmount = decimal.NewFromInt(1000)

	budgetHorizon = decimal.NewFromInt(BudgetHorizonDays)
)

var (
	ErrBudgetTotalBelowMinimum = errors.New("total budget below minimum")
	ErrBudgetStartDateRequired = errors.New("budget start date required")
	ErrTopUpBelowMinimum       = errors.New("top-up amount below minimum")
	ErrBudgetWindowElapsed     = errors.New("budget window already elapsed")
	ErrInsufficientBudget      = errors.New("insufficient budget")
)

// Budget is the per-user allocation plan over a 50-trading-day horizon.
// DailyAmount is always total/50 regardless of elapsed days - a top-up
// recomputes it from the new total, never pro-rata over remaining days.
type Budget struct {
	UserID           int64
	TotalAmount      decimal.Decimal
	DailyAmount      decimal.Decimal
	StartDate        time.Time
	UsedAmount       decimal.Decimal
	ReinvestedProfit decimal.Decimal
}

// BudgetStatus is a budget snapshot enriched with the derived day counters.
type BudgetStatus struct {
	Budget        Budget
	Available     decimal.Decimal
	DaysCompleted int
	RemainingDays int
	EndDate       time.Time
}

// BudgetCheck is the result of an affordability probe.
type BudgetCheck struct {
	Sufficient bool
	Available  decimal.Decimal
	Required   decimal.Decimal
	Shortfall  decimal.Decimal
}

// NewBudget validates and builds a fresh budget: total must be at least
// MinTotalBudget and the start date must be set.
func NewBudget(userID int64, total decimal.Decimal, startDate time.Time) (Budget, error) {
	if total.LessThan(MinTotalBudget) {
		return Budget{}, ErrBudgetTotalBelowMinimum
	}
	if startDate.IsZero() {
		return Budget{}, ErrBudgetStartDateRequired
	}

	return Budget{
		UserID:           userID,
		TotalAmount:      total,
		DailyAmount:      total.Div(budgetHorizon),
		StartDate:        startDate,
		UsedAmount:       decimal.Zero,
		ReinvestedProfit: decimal.Zero,
	}, nil
}

// Available returns total - used + reinvestedProfit.
func (b Budget) Available() decimal.Decimal {
	return b.TotalAmount.Sub(b.UsedAmount).Add(b.ReinvestedProfit)
}

// DaysCompleted returns trading days elapsed since the start date, capped at
// the horizon. A start date in the future yields 0.
func (b Budget) DaysCompleted(now time.Time) int {
	days := calendar.TradingDaysBetween(b.StartDate, now)
	if days > BudgetHorizonDays {
		return BudgetHorizonDays
	}
	return days
}

// RemainingDays returns max(0, horizon - daysCompleted).
func (b Budget) RemainingDays(now time.Time) int {
	return BudgetHorizonDays - b.DaysCompleted(now)
}

// EndDate returns the last trading day of the allocation window.
func (b Budget) EndDate() time.Time {
	return calendar.AddTradingDays(b.StartDate, BudgetHorizonDays)
}

// ApplyTopUp adds to the total and recomputes the daily amount from the new
// total. Fails if the amount is below MinTopUpAmount or the window elapsed.
func (b *Budget) ApplyTopUp(additional decimal.Decimal, now time.Time) error {
	if additional.LessThan(MinTopUpAmount) {
		return ErrTopUpBelowMinimum
	}
	if b.RemainingDays(now) <= 0 {
		return ErrBudgetWindowElapsed
	}

	b.TotalAmount = b.TotalAmount.Add(additional)
	b.DailyAmount = b.TotalAmount.Div(budgetHorizon)
	return nil
}

// PreviewTopUp runs the top-up validation and returns the projected budget
// without mutating the receiver.
func (b Budget) PreviewTopUp(additional decimal.Decimal, now time.Time) (Budget, error) {
	projected := b
	if err := projected.ApplyTopUp(additional, now); err != nil {
		return Budget{}, err
	}
	return projected, nil
}

// RecordInvestment books a buy against the budget; it never lets used exceed
// total + reinvestedProfit.
func (b *Budget) RecordInvestment(amount decimal.Decimal) error {
	if amount.GreaterThan(b.Available()) {
		return ErrInsufficientBudget
	}
	b.UsedAmount = b.UsedAmount.Add(amount)
	return nil
}

// AddProfit books the reinvestment portion of a realized profit back into the
// budget. Only the reinvestment increment is persisted; the full allocation is
// recomputed on demand from raw holding dates.
func (b *Budget) AddProfit(allocation ProfitAllocation) {
	b.ReinvestedProfit = b.ReinvestedProfit.Add(allocation.ReinvestmentAmount)
}

// CheckSufficient probes whether the available amount covers required.
func (b Budget) CheckSufficient(required decimal.Decimal) BudgetCheck {
	available := b.Available()
	check := BudgetCheck{
		Available: available,
		Required:  required,
		Shortfall: decimal.Zero,
	}
	if required.GreaterThan(available) {
		check.Shortfall = required.Sub(available)
		return check
	}
	check.Sufficient = true
	return check
}
