package advisorService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avoronin/dma_advisor_bot/internal/calendar"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/service"
	"github.com/avoronin/dma_advisor_bot/internal/strategy"
	"github.com/avoronin/dma_advisor_bot/internal/taxation"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/shopspring/decimal"
)

// RefreshRanking ranks the whole universe by deviation and replaces today's
// persisted ranking rows.
func (s *AdvisorService) RefreshRanking(ctx context.Context) ([]model.RankedInstrument, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.RefreshRanking"

	slog.Debug("RefreshRanking start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("RefreshRanking finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	instruments, err := s.repo.GetInstruments(ctx)
	if err != nil {
		slog.Error("got error from repo.GetInstruments", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if len(instruments) == 0 {
		return nil, service.ErrNoInstruments
	}

	ranked := strategy.Rank(instruments)

	// rankings are keyed by date; the time of day must not leak into the key
	// or same-day runs stop replacing each other
	now := s.now()
	dt := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	err = s.repo.ReplaceRankings(ctx, dt, ranked)
	if err != nil {
		slog.Error("got error from repo.ReplaceRankings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return ranked, nil
}

// RefreshRankingJob is the scheduler-facing wrapper around RefreshRanking.
// An empty universe is not an error for the job: there is simply nothing to
// rank until prices arrive.
func (s *AdvisorService) RefreshRankingJob(ctx context.Context) error {
	_, err := s.RefreshRanking(ctx)
	if errors.Is(err, service.ErrNoInstruments) {
		return nil
	}
	return err
}

// CalculateStrategy runs one decision cycle for the user: refresh the
// ranking, decide buys and sells, and auto-execute the sell if there is one.
// The buy side is only recommended here; it executes in ConfirmBuy after an
// explicit confirmation.
func (s *AdvisorService) CalculateStrategy(ctx context.Context, chatID int64) (model.StrategyResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.CalculateStrategy"

	slog.Debug("CalculateStrategy start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("CalculateStrategy finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.StrategyResult{}, err
	}

	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		return model.StrategyResult{}, err
	}

	ranked, err := s.RefreshRanking(ctx)
	if err != nil {
		return model.StrategyResult{}, err
	}

	holdings, err := s.repo.GetActiveHoldings(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetActiveHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.StrategyResult{}, err
	}

	decision := strategy.Decide(ranked, holdings, budget.DailyAmount, s.strategyCfg)

	result := model.StrategyResult{Decision: decision, Budget: budget}

	if decision.Sell != nil {
		sellProfit, allocation, err := s.executeSell(ctx, &budget, *decision.Sell)
		if err != nil {
			return model.StrategyResult{}, err
		}
		result.SellExecuted = true
		result.SellProfit = sellProfit
		result.SellAllocation = allocation
		result.Budget = budget

		_ = s.cache.FlushPortfolio(ctx, userID)
	}

	return result, nil
}

// executeSell closes the lot, allocates the realized profit and books the
// reinvestment portion back into the budget. Lot close and budget write
// commit in one transaction; a half-executed sell never persists.
func (s *AdvisorService) executeSell(ctx context.Context, budget *model.Budget, sell model.SellDecision) (decimal.Decimal, *model.ProfitAllocation, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.executeSell"

	now := s.now()

	sold := sell.Holding
	sold.Active = false
	sold.SellPrice = sell.Price
	sold.SellDate = now

	profit := sold.Profit()

	allocation := taxation.Allocate(profit, calendar.DaysBetween(sold.BuyDate, now))
	if allocation == nil {
		// nothing to book into the budget, closing the lot is the whole sell
		err := s.repo.CloseHolding(ctx, sell.Holding.HoldingID, sell.Price, now)
		if err != nil {
			slog.Error("got error from repo.CloseHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return decimal.Zero, nil, err
		}
		return profit, nil, nil
	}

	budget.AddProfit(*allocation)

	err := s.repo.ExecuteSell(ctx, sell.Holding.HoldingID, sell.Price, now, *budget)
	if err != nil {
		slog.Error("got error from repo.ExecuteSell", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Zero, nil, err
	}

	return profit, allocation, nil
}

// ConfirmBuy executes a previously decided buy option. The quantity is
// clipped down to what the available budget covers; if even a single unit
// does not fit the buy fails instead of overdrawing.
func (s *AdvisorService) ConfirmBuy(ctx context.Context, chatID int64, pending model.PendingBuy) (model.BuyExecution, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.ConfirmBuy"

	slog.Debug("ConfirmBuy start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("instrument", pending.InstrumentName))
	defer func() {
		slog.Debug("ConfirmBuy finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.BuyExecution{}, err
	}

	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		return model.BuyExecution{}, err
	}

	quantity := pending.Quantity
	if quantity < 1 {
		quantity = 1
	}

	available := budget.Available()
	required := pending.Price.Mul(decimal.NewFromInt(int64(quantity)))
	clipped := false

	if required.GreaterThan(available) {
		if pending.Price.IsZero() {
			return model.BuyExecution{}, model.ErrInsufficientBudget
		}
		quantity = int(available.Div(pending.Price).IntPart())
		if quantity < 1 {
			return model.BuyExecution{}, model.ErrInsufficientBudget
		}
		clipped = true
		required = pending.Price.Mul(decimal.NewFromInt(int64(quantity)))
	}

	holding := model.Holding{
		UserID:         userID,
		InstrumentID:   pending.InstrumentID,
		InstrumentName: pending.InstrumentName,
		BuyPrice:       pending.Price,
		Quantity:       quantity,
		BuyDate:        s.now(),
		Active:         true,
	}

	if err := budget.RecordInvestment(required); err != nil {
		return model.BuyExecution{}, err
	}

	// lot insert and budget debit commit together or not at all
	holdingID, err := s.repo.ExecuteBuy(ctx, holding, budget)
	if err != nil {
		slog.Error("got error from repo.ExecuteBuy", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.BuyExecution{}, err
	}
	holding.HoldingID = holdingID

	_ = s.cache.FlushPortfolio(ctx, userID)

	return model.BuyExecution{
		Holding:  holding,
		Quantity: quantity,
		Amount:   required,
		Clipped:  clipped,
	}, nil
}
