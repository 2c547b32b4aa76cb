package model

import "github.com/shopspring/decimal"

// BuyOption is one buy candidate with its recommended quantity.
type BuyOption struct {
	Instrument     RankedInstrument
	Quantity       int
	RequiredAmount decimal.Decimal
}

// BuyDecision is either a set of ranked options over instruments not yet held
// (Averaging=false, Options[0] is the highlighted default) or a single
// averaging-down option into an existing lot (Averaging=true, Holding set).
// The two never appear in the same cycle: averaging is only reached when the
// whole top of the ranking is already held.
type BuyDecision struct {
	Averaging bool
	Options   []BuyOption
	Holding   *Holding
}

// SellDecision carries the single profit-taking candidate of a cycle.
type SellDecision struct {
	Holding   Holding
	Price     decimal.Decimal
	ProfitPct decimal.Decimal
}

// Decision is the output of one strategy cycle: at most one buy
// recommendation (possibly with multiple ranked options) and at most one
// sell.
type Decision struct {
	Buy  *BuyDecision
	Sell *SellDecision
}

// StrategyResult is one full strategy cycle as executed: the decision, plus
// the outcome of the auto-executed sell if there was one. Buys are never
// auto-executed; they wait for explicit confirmation.
type StrategyResult struct {
	Decision       Decision
	SellExecuted   bool
	SellProfit     decimal.Decimal
	SellAllocation *ProfitAllocation
	Budget         Budget
}

// BuyExecution is the outcome of a confirmed buy. Clipped is set when the
// requested quantity was reduced to fit the available budget.
type BuyExecution struct {
	Holding  Holding
	Quantity int
	Amount   decimal.Decimal
	Clipped  bool
}
