package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/shopspring/decimal"
)

const dateFormat = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// FormatBudgetStatus renders the /budget reply.
func FormatBudgetStatus(status model.BudgetStatus) string {
	sb := strings.Builder{}
	sb.WriteString("Budget\n")
	sb.WriteString(fmt.Sprintf("Total: %s\n", status.Budget.TotalAmount.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Daily amount: %s\n", status.Budget.DailyAmount.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Used: %s\n", status.Budget.UsedAmount.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Reinvested profit: %s\n", status.Budget.ReinvestedProfit.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Available: %s\n", status.Available.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Started: %s, ends: %s\n", status.Budget.StartDate.Format(dateFormat), status.EndDate.Format(dateFormat)))
	sb.WriteString(fmt.Sprintf("Days completed: %d of %d (remaining: %d)", status.DaysCompleted, model.BudgetHorizonDays, status.RemainingDays))
	return sb.String()
}

// FormatTopUpPreview renders the projected budget before the user confirms.
func FormatTopUpPreview(projected model.Budget) string {
	return fmt.Sprintf(
		"After top-up:\nTotal: %s\nDaily amount: %s\n\nConfirm?",
		projected.TotalAmount.StringFixed(2),
		projected.DailyAmount.StringFixed(2),
	)
}

// FormatStrategyResult renders one strategy cycle: the executed sell (if
// any) and the buy recommendation.
func FormatStrategyResult(result model.StrategyResult) string {
	sb := strings.Builder{}

	if result.SellExecuted {
		sell := result.Decision.Sell
		sb.WriteString(fmt.Sprintf(
			"Sold %s: %d x %s (profit %s, +%s%%)\n",
			sell.Holding.InstrumentName,
			sell.Holding.Quantity,
			sell.Price.StringFixed(2),
			result.SellProfit.StringFixed(2),
			sell.ProfitPct.StringFixed(2),
		))
		if result.SellAllocation != nil {
			sb.WriteString(FormatAllocation(*result.SellAllocation))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	buy := result.Decision.Buy
	switch {
	case buy == nil:
		sb.WriteString("No buy candidates today.")
	case buy.Averaging:
		option := buy.Options[0]
		sb.WriteString(fmt.Sprintf(
			"Averaging down: %s at %s (lot bought at %s), recommended quantity %d for %s.\nConfirm to execute.",
			option.Instrument.Name,
			option.Instrument.Cmp.StringFixed(2),
			buy.Holding.BuyPrice.StringFixed(2),
			option.Quantity,
			option.RequiredAmount.StringFixed(2),
		))
	default:
		sb.WriteString("Buy options (rank, deviation):\n")
		for i, option := range buy.Options {
			marker := "  "
			if i == 0 {
				marker = "* " // highlighted default option
			}
			sb.WriteString(fmt.Sprintf(
				"%s%d. %s at %s (%s%%), qty %d for %s\n",
				marker,
				option.Instrument.Rank,
				option.Instrument.Name,
				option.Instrument.Cmp.StringFixed(2),
				option.Instrument.DeviationPct.StringFixed(2),
				option.Quantity,
				option.RequiredAmount.StringFixed(2),
			))
		}
		sb.WriteString("Pick an option to execute the buy.")
	}

	return sb.String()
}

// FormatAllocation renders the tax/brokerage/reinvestment split of one
// realized profit.
func FormatAllocation(allocation model.ProfitAllocation) string {
	return fmt.Sprintf(
		"Tax (%s-term, %s%%): %s, brokerage: %s, reinvested: %s, net: %s",
		allocation.TaxType,
		allocation.TaxRate.Mul(hundred).StringFixed(1),
		allocation.TaxAmount.StringFixed(2),
		allocation.BrokerageAmount.StringFixed(2),
		allocation.ReinvestmentAmount.StringFixed(2),
		allocation.NetAmount.StringFixed(2),
	)
}

// FormatBuyExecution renders a confirmed buy.
func FormatBuyExecution(execution model.BuyExecution) string {
	msg := fmt.Sprintf(
		"Bought %s: %d x %s for %s.",
		execution.Holding.InstrumentName,
		execution.Quantity,
		execution.Holding.BuyPrice.StringFixed(2),
		execution.Amount.StringFixed(2),
	)
	if execution.Clipped {
		msg += "\nQuantity was reduced to fit the available budget."
	}
	return msg
}

// FormatPortfolioSummary renders the /portfolio reply.
func FormatPortfolioSummary(summary model.PortfolioSummary) string {
	sb := strings.Builder{}
	sb.WriteString("Portfolio\n")
	sb.WriteString(fmt.Sprintf("Active lots: %d\n", summary.ActiveLots))
	sb.WriteString(fmt.Sprintf("Invested: %s\n", summary.TotalInvestment.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Current value: %s\n", summary.CurrentValue.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Unrealized P&L: %s (%s%%)\n", summary.UnrealizedPnL.StringFixed(2), summary.UnrealizedPnLPct.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Realized P&L: %s\n", summary.RealizedPnL.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Tax paid: %s (short: %s, long: %s)\n", summary.TotalTax.StringFixed(2), summary.ShortTermTax.StringFixed(2), summary.LongTermTax.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Net profit: %s", summary.NetProfit.StringFixed(2)))
	return sb.String()
}

// FormatTransactions renders the trade history, newest first.
func FormatTransactions(transactions []model.Transaction, limit int) string {
	if len(transactions) == 0 {
		return "No transactions yet."
	}

	sb := strings.Builder{}
	sb.WriteString("History\n")
	for i, t := range transactions {
		if limit > 0 && i >= limit {
			sb.WriteString(fmt.Sprintf("... and %d more", len(transactions)-limit))
			break
		}
		line := fmt.Sprintf("%s %s %s: %d x %s = %s",
			t.Date.Format(dateFormat),
			t.Type,
			t.InstrumentName,
			t.Quantity,
			t.Price.StringFixed(2),
			t.Amount.StringFixed(2),
		)
		if t.Type == model.TransactionSell {
			line += fmt.Sprintf(" (profit %s)", t.Profit.StringFixed(2))
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatInstrument renders a single instrument lookup.
func FormatInstrument(instrument model.Instrument) string {
	return fmt.Sprintf(
		"%s\nCMP: %s\nDMA: %s\nDeviation: %s%%",
		instrument.Name,
		instrument.Cmp.StringFixed(2),
		instrument.Dma.StringFixed(2),
		instrument.Deviation().StringFixed(2),
	)
}
