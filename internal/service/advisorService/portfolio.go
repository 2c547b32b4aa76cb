package advisorService

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/avoronin/dma_advisor_bot/internal/calendar"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/service"
	"github.com/avoronin/dma_advisor_bot/internal/taxation"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// GetPortfolioSummary aggregates active and historical lots. Served from the
// cache when possible; any financial mutation flushes it.
func (s *AdvisorService) GetPortfolioSummary(ctx context.Context, chatID int64) (model.PortfolioSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.GetPortfolioSummary"

	slog.Debug("GetPortfolioSummary start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetPortfolioSummary finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.PortfolioSummary{}, err
	}

	summary, err := s.cache.GetPortfolioSummary(ctx, userID)
	if err == nil {
		return summary, nil
	}

	slog.Warn("can't get portfolio summary from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	instruments, err := s.repo.GetInstruments(ctx)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	prices := make(map[int64]decimal.Decimal, len(instruments))
	for _, instrument := range instruments {
		prices[instrument.InstrumentID] = instrument.Cmp
	}

	summary = computeSummary(holdings, prices)

	go s.cache.SetPortfolioSummary(context.WithoutCancel(ctx), userID, summary)

	return summary, nil
}

// computeSummary is the portfolio aggregation. Tax amounts are recomputed per
// historical lot from raw dates, never read back from storage. Net profit is
// realized P&L minus total tax; brokerage is not subtracted here.
func computeSummary(holdings []model.Holding, prices map[int64]decimal.Decimal) model.PortfolioSummary {
	summary := model.PortfolioSummary{
		TotalInvestment:  decimal.Zero,
		CurrentValue:     decimal.Zero,
		UnrealizedPnL:    decimal.Zero,
		UnrealizedPnLPct: decimal.Zero,
		RealizedPnL:      decimal.Zero,
		ShortTermTax:     decimal.Zero,
		LongTermTax:      decimal.Zero,
		TotalTax:         decimal.Zero,
		NetProfit:        decimal.Zero,
	}

	for _, h := range holdings {
		if h.Active {
			summary.ActiveLots++
			summary.TotalInvestment = summary.TotalInvestment.Add(h.InvestedAmount())
			if price, ok := prices[h.InstrumentID]; ok {
				summary.CurrentValue = summary.CurrentValue.Add(price.Mul(decimal.NewFromInt(int64(h.Quantity))))
			}
			continue
		}

		profit := h.Profit()
		summary.RealizedPnL = summary.RealizedPnL.Add(profit)

		allocation := taxation.Allocate(profit, calendar.DaysBetween(h.BuyDate, h.SellDate))
		if allocation == nil {
			continue
		}

		if allocation.TaxType == model.TaxShortTerm {
			summary.ShortTermTax = summary.ShortTermTax.Add(allocation.TaxAmount)
		} else {
			summary.LongTermTax = summary.LongTermTax.Add(allocation.TaxAmount)
		}
	}

	summary.UnrealizedPnL = summary.CurrentValue.Sub(summary.TotalInvestment)
	if !summary.TotalInvestment.IsZero() {
		summary.UnrealizedPnLPct = summary.UnrealizedPnL.Div(summary.TotalInvestment).Mul(hundred)
	}

	summary.TotalTax = summary.ShortTermTax.Add(summary.LongTermTax)
	summary.NetProfit = summary.RealizedPnL.Sub(summary.TotalTax)

	return summary
}

// GetTransactions materializes the trade history: a BUY row for every lot and
// a SELL row for every closed one, newest first.
func (s *AdvisorService) GetTransactions(ctx context.Context, chatID int64) ([]model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.GetTransactions"

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetTransactions finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	return materializeTransactions(holdings), nil
}

func materializeTransactions(holdings []model.Holding) []model.Transaction {
	transactions := make([]model.Transaction, 0, len(holdings)*2)

	for _, h := range holdings {
		transactions = append(transactions, model.Transaction{
			Type:           model.TransactionBuy,
			InstrumentName: h.InstrumentName,
			Price:          h.BuyPrice,
			Quantity:       h.Quantity,
			Amount:         h.InvestedAmount(),
			Date:           h.BuyDate,
		})

		if h.Active {
			continue
		}

		transactions = append(transactions, model.Transaction{
			Type:           model.TransactionSell,
			InstrumentName: h.InstrumentName,
			Price:          h.SellPrice,
			Quantity:       h.Quantity,
			Amount:         h.SellPrice.Mul(decimal.NewFromInt(int64(h.Quantity))),
			Date:           h.SellDate,
			Profit:         h.Profit(),
		})
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Date.After(transactions[j].Date)
	})

	return transactions
}

// buildReportData collects everything the xlsx report renders for one user.
func (s *AdvisorService) buildReportData(ctx context.Context, chatID int64) (model.PortfolioReport, error) {
	summary, err := s.GetPortfolioSummary(ctx, chatID)
	if err != nil {
		return model.PortfolioReport{}, err
	}

	transactions, err := s.GetTransactions(ctx, chatID)
	if err != nil {
		return model.PortfolioReport{}, err
	}

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		return model.PortfolioReport{}, err
	}

	holdings, err := s.repo.GetActiveHoldings(ctx, userID)
	if err != nil {
		return model.PortfolioReport{}, err
	}

	report := model.PortfolioReport{
		GeneratedAt:  s.now(),
		Summary:      summary,
		Holdings:     holdings,
		Transactions: transactions,
	}

	// The report degrades gracefully when no budget is configured; real read
	// errors propagate.
	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		if !errors.Is(err, service.ErrBudgetNotConfigured) {
			return model.PortfolioReport{}, err
		}
		return report, nil
	}
	report.Budget = &budget

	return report, nil
}
