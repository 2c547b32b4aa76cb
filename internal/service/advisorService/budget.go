package advisorService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avoronin/dma_advisor_bot/data/repository"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/service"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/shopspring/decimal"
)

// SetBudget configures (or reconfigures) the user's 50-day allocation plan.
// Validation lives in the budget constructor; a reconfiguration starts from a
// clean used/reinvested state.
func (s *AdvisorService) SetBudget(ctx context.Context, chatID int64, total decimal.Decimal, startDate time.Time) (model.Budget, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.SetBudget"

	slog.Debug("SetBudget start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("SetBudget finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Budget{}, err
	}

	budget, err := model.NewBudget(userID, total, startDate)
	if err != nil {
		return model.Budget{}, err
	}

	err = s.repo.UpsertBudget(ctx, budget)
	if err != nil {
		slog.Error("got error from repo.UpsertBudget", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Budget{}, err
	}

	_ = s.cache.FlushPortfolio(ctx, userID)

	return budget, nil
}

// ResetBudget deletes the persisted budget record. Resetting an unconfigured
// budget is a policy violation, not a silent no-op.
func (s *AdvisorService) ResetBudget(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.ResetBudget"

	slog.Debug("ResetBudget start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("ResetBudget finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	err = s.repo.DeleteBudget(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrBudgetNotConfigured
		}
		slog.Error("got error from repo.DeleteBudget", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	_ = s.cache.FlushPortfolio(ctx, userID)

	return nil
}

// PreviewTopUp validates a top-up and returns the projected budget without
// committing anything, so the caller can show a confirmation first.
func (s *AdvisorService) PreviewTopUp(ctx context.Context, chatID int64, additional decimal.Decimal) (model.Budget, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.PreviewTopUp"

	slog.Debug("PreviewTopUp start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("PreviewTopUp finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		return model.Budget{}, err
	}

	return budget.PreviewTopUp(additional, s.now())
}

// TopUp commits a top-up: total grows, daily amount is recomputed from the
// new total. Used and reinvested amounts are untouched.
func (s *AdvisorService) TopUp(ctx context.Context, chatID int64, additional decimal.Decimal) (model.Budget, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.TopUp"

	slog.Debug("TopUp start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("TopUp finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		return model.Budget{}, err
	}

	if err := budget.ApplyTopUp(additional, s.now()); err != nil {
		return model.Budget{}, err
	}

	err = s.repo.UpsertBudget(ctx, budget)
	if err != nil {
		slog.Error("got error from repo.UpsertBudget", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Budget{}, err
	}

	return budget, nil
}

// GetBudgetStatus returns the budget with its derived day counters.
func (s *AdvisorService) GetBudgetStatus(ctx context.Context, chatID int64) (model.BudgetStatus, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.GetBudgetStatus"

	slog.Debug("GetBudgetStatus start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetBudgetStatus finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		return model.BudgetStatus{}, err
	}

	now := s.now()
	return model.BudgetStatus{
		Budget:        budget,
		Available:     budget.Available(),
		DaysCompleted: budget.DaysCompleted(now),
		RemainingDays: budget.RemainingDays(now),
		EndDate:       budget.EndDate(),
	}, nil
}

// CheckSufficient probes whether the available budget covers required.
func (s *AdvisorService) CheckSufficient(ctx context.Context, chatID int64, required decimal.Decimal) (model.BudgetCheck, error) {
	budget, err := s.getBudget(ctx, chatID)
	if err != nil {
		return model.BudgetCheck{}, err
	}
	return budget.CheckSufficient(required), nil
}

func (s *AdvisorService) getBudget(ctx context.Context, chatID int64) (model.Budget, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Budget{}, err
	}

	budget, err := s.repo.GetBudget(ctx, userID)
	if err != nil {
		// A missing record degrades to "unconfigured"; real I/O errors
		// propagate unchanged.
		if errors.Is(err, repository.ErrNotFound) {
			return model.Budget{}, service.ErrBudgetNotConfigured
		}
		slog.Error("got error from repo.GetBudget", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Budget{}, err
	}

	return budget, nil
}
