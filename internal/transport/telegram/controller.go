package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/data/session"
	"github.com/avoronin/dma_advisor_bot/internal/converter/telebotConverter"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/service"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg = "something went wrong, try again later"
	dateFormat     = "2006-01-02"

	historyLimit = 20
)

type AdvisorService interface {
	RegUser(ctx context.Context, chatID int64) error
	SetBudget(ctx context.Context, chatID int64, total decimal.Decimal, startDate time.Time) (model.Budget, error)
	ResetBudget(ctx context.Context, chatID int64) error
	PreviewTopUp(ctx context.Context, chatID int64, additional decimal.Decimal) (model.Budget, error)
	TopUp(ctx context.Context, chatID int64, additional decimal.Decimal) (model.Budget, error)
	GetBudgetStatus(ctx context.Context, chatID int64) (model.BudgetStatus, error)
	CalculateStrategy(ctx context.Context, chatID int64) (model.StrategyResult, error)
	ConfirmBuy(ctx context.Context, chatID int64, pending model.PendingBuy) (model.BuyExecution, error)
	GetPortfolioSummary(ctx context.Context, chatID int64) (model.PortfolioSummary, error)
	GetTransactions(ctx context.Context, chatID int64) ([]model.Transaction, error)
	GenerateReport(ctx context.Context, chatID int64) (downloadLink string, err error)
	ImportPrices(ctx context.Context, reader io.Reader) (imported int, err error)
	GetInstrumentInfo(ctx context.Context, name string) (model.Instrument, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	cfg            *config.Config
	advisorService AdvisorService
	session        Session
}

func NewController(cfg *config.Config, advisorService AdvisorService, session Session) *Controller {
	return &Controller{
		cfg:            cfg,
		advisorService: advisorService,
		session:        session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.advisorService.RegUser(ctx, c.Chat().ID); err != nil {
		slog.Error("got error from advisorService.RegUser", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("Hello! Use /set_budget to configure your 50-day budget and /strategy to get recommendations.")
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return model.Session{}, nil
		}
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) saveSession(ctx context.Context, c tele.Context, chatSession model.Session) error {
	return ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
}

// InitSetBudget moves the chat into the budget-amount input step.
func (ctrl *Controller) InitSetBudget(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingBudgetAmount
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Enter the total budget amount, optionally followed by the start date (e.g. `50000 2026-09-01`). Minimum 5000.")
}

// ProcessSetBudget parses "AMOUNT [YYYY-MM-DD]" and configures the budget.
func (ctrl *Controller) ProcessSetBudget(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	defer func() {
		chatSession.State = model.DefaultState
		_ = ctrl.saveSession(ctx, c, chatSession)
	}()

	fields := strings.Fields(c.Message().Text)
	if len(fields) == 0 || len(fields) > 2 {
		return c.Send("Expected: AMOUNT [YYYY-MM-DD]")
	}

	total, err := decimal.NewFromString(fields[0])
	if err != nil {
		return c.Send("Can't parse the amount, try again with /set_budget")
	}

	startDate := time.Now()
	if len(fields) == 2 {
		startDate, err = time.Parse(dateFormat, fields[1])
		if err != nil {
			return c.Send("Can't parse the start date, expected YYYY-MM-DD")
		}
	}

	budget, err := ctrl.advisorService.SetBudget(ctx, c.Chat().ID, total, startDate)
	if err != nil {
		if errors.Is(err, model.ErrBudgetTotalBelowMinimum) {
			return c.Send("Total budget must be at least " + model.MinTotalBudget.StringFixed(0))
		}
		if errors.Is(err, model.ErrBudgetStartDateRequired) {
			return c.Send("Start date is required")
		}
		slog.Error("got error from advisorService.SetBudget", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("Budget configured. Daily amount: " + budget.DailyAmount.StringFixed(2))
}

// BudgetStatus handles /budget.
func (ctrl *Controller) BudgetStatus(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	status, err := ctrl.advisorService.GetBudgetStatus(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrBudgetNotConfigured) {
			return c.Send("Budget is not configured yet, use /set_budget")
		}
		slog.Error("got error from advisorService.GetBudgetStatus", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.FormatBudgetStatus(status))
}

// ResetBudget handles /reset_budget.
func (ctrl *Controller) ResetBudget(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	err := ctrl.advisorService.ResetBudget(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrBudgetNotConfigured) {
			return c.Send("There is no budget to reset")
		}
		slog.Error("got error from advisorService.ResetBudget", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("Budget removed. Use /set_budget to start over.")
}

// InitTopUp moves the chat into the top-up amount input step.
func (ctrl *Controller) InitTopUp(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingTopUpAmount
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Enter the top-up amount (minimum 1000):")
}

// ProcessTopUpAmount previews the top-up and asks for confirmation.
func (ctrl *Controller) ProcessTopUpAmount(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	additional, err := decimal.NewFromString(strings.TrimSpace(c.Message().Text))
	if err != nil {
		chatSession.State = model.DefaultState
		_ = ctrl.saveSession(ctx, c, chatSession)
		return c.Send("Can't parse the amount, try again with /topup_budget")
	}

	projected, err := ctrl.advisorService.PreviewTopUp(ctx, c.Chat().ID, additional)
	if err != nil {
		chatSession.State = model.DefaultState
		_ = ctrl.saveSession(ctx, c, chatSession)
		return ctrl.sendTopUpError(c, rqID, err)
	}

	chatSession.State = model.ExpectingTopUpConfirmation
	chatSession.PendingTopUp = additional
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		{Text: "Confirm", Data: "topup_confirm"},
		{Text: "Cancel", Data: "cancel"},
	}}}

	return c.Send(telebotConverter.FormatTopUpPreview(projected), markup)
}

// ConfirmTopUp commits the previewed top-up (callback handler).
func (ctrl *Controller) ConfirmTopUp(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if chatSession.State != model.ExpectingTopUpConfirmation || chatSession.PendingTopUp.IsZero() {
		return c.Send("Nothing to confirm, start with /topup_budget")
	}

	additional := chatSession.PendingTopUp
	chatSession.State = model.DefaultState
	chatSession.PendingTopUp = decimal.Zero
	defer func() {
		_ = ctrl.saveSession(ctx, c, chatSession)
	}()

	budget, err := ctrl.advisorService.TopUp(ctx, c.Chat().ID, additional)
	if err != nil {
		return ctrl.sendTopUpError(c, rqID, err)
	}

	return c.Send("Topped up. New total: " + budget.TotalAmount.StringFixed(2) + ", daily amount: " + budget.DailyAmount.StringFixed(2))
}

func (ctrl *Controller) sendTopUpError(c tele.Context, rqID string, err error) error {
	if errors.Is(err, service.ErrBudgetNotConfigured) {
		return c.Send("Budget is not configured yet, use /set_budget")
	}
	if errors.Is(err, model.ErrTopUpBelowMinimum) {
		return c.Send("Top-up must be at least " + model.MinTopUpAmount.StringFixed(0))
	}
	if errors.Is(err, model.ErrBudgetWindowElapsed) {
		return c.Send("The 50-day budget window has already elapsed, top-up is not allowed")
	}
	slog.Error("top-up failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
	return c.Send(internalErrMsg)
}

// CalculateStrategy handles /strategy: runs the decision cycle, reports the
// auto-executed sell and parks buy options in the session for confirmation.
func (ctrl *Controller) CalculateStrategy(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	result, err := ctrl.advisorService.CalculateStrategy(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrBudgetNotConfigured) {
			return c.Send("Budget is not configured yet, use /set_budget")
		}
		if errors.Is(err, service.ErrNoInstruments) {
			return c.Send("The instrument universe is empty, import prices first with /import_prices")
		}
		slog.Error("got error from advisorService.CalculateStrategy", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.PendingBuys = nil
	chatSession.State = model.DefaultState

	var markup *tele.ReplyMarkup
	if buy := result.Decision.Buy; buy != nil {
		for _, option := range buy.Options {
			chatSession.PendingBuys = append(chatSession.PendingBuys, model.PendingBuy{
				InstrumentID:   option.Instrument.InstrumentID,
				InstrumentName: option.Instrument.Name,
				Price:          option.Instrument.Cmp,
				Quantity:       option.Quantity,
				Averaging:      buy.Averaging,
			})
		}
		chatSession.State = model.ExpectingBuyConfirmation
		markup = buyOptionsMarkup(chatSession.PendingBuys)
	}

	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	msg := telebotConverter.FormatStrategyResult(result)
	if markup != nil {
		return c.Send(msg, markup)
	}
	return c.Send(msg)
}

func buyOptionsMarkup(pendingBuys []model.PendingBuy) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(pendingBuys)+1)
	for i, pending := range pendingBuys {
		rows = append(rows, []tele.InlineButton{{
			Text: "Buy " + pending.InstrumentName,
			Data: "buy:" + strconv.Itoa(i),
		}})
	}
	rows = append(rows, []tele.InlineButton{{Text: "Cancel", Data: "cancel"}})
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// ConfirmBuy executes the selected pending buy option (callback handler).
func (ctrl *Controller) ConfirmBuy(c tele.Context, optionIdx int) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if chatSession.State != model.ExpectingBuyConfirmation || optionIdx < 0 || optionIdx >= len(chatSession.PendingBuys) {
		return c.Send("Nothing to confirm, run /strategy first")
	}

	pending := chatSession.PendingBuys[optionIdx]

	chatSession.State = model.DefaultState
	chatSession.PendingBuys = nil
	defer func() {
		_ = ctrl.saveSession(ctx, c, chatSession)
	}()

	execution, err := ctrl.advisorService.ConfirmBuy(ctx, c.Chat().ID, pending)
	if err != nil {
		if errors.Is(err, model.ErrInsufficientBudget) {
			return c.Send("Not enough available budget even for a single unit")
		}
		slog.Error("got error from advisorService.ConfirmBuy", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.FormatBuyExecution(execution))
}

// Cancel drops whatever the chat was in the middle of (callback handler).
func (ctrl *Controller) Cancel(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.PendingBuys = nil
	chatSession.PendingTopUp = decimal.Zero
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Cancelled.")
}

// PortfolioSummary handles /portfolio.
func (ctrl *Controller) PortfolioSummary(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	summary, err := ctrl.advisorService.GetPortfolioSummary(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from advisorService.GetPortfolioSummary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.FormatPortfolioSummary(summary))
}

// History handles /history.
func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	transactions, err := ctrl.advisorService.GetTransactions(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from advisorService.GetTransactions", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.FormatTransactions(transactions, historyLimit))
}

// Report handles /report.
func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	downloadLink, err := ctrl.advisorService.GenerateReport(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from advisorService.GenerateReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("Report is ready: " + downloadLink)
}

// InstrumentInfo handles /instrument NAME.
func (ctrl *Controller) InstrumentInfo(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	name := strings.ToUpper(strings.TrimSpace(c.Message().Payload))
	if name == "" {
		return c.Send("Usage: /instrument NAME")
	}

	instrument, err := ctrl.advisorService.GetInstrumentInfo(ctx, name)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("Unknown instrument")
		}
		if errors.Is(err, service.ErrInstrumentNotActive) {
			return c.Send("The instrument is not traded right now")
		}
		slog.Error("got error from advisorService.GetInstrumentInfo", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.FormatInstrument(instrument))
}

// InitImportPrices moves the chat into the document upload step.
func (ctrl *Controller) InitImportPrices(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingPricesDocument
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Send a CSV file with name, cmp and dma columns.")
}

// ProcessImportPrices ingests the uploaded CSV price sheet.
func (ctrl *Controller) ProcessImportPrices(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	defer func() {
		chatSession.State = model.DefaultState
		_ = ctrl.saveSession(ctx, c, chatSession)
	}()

	doc := c.Message().Document
	if doc == nil {
		return c.Send("Expected a document")
	}

	if ctrl.cfg.Telegram.FileLimitInBytes > 0 && doc.FileSize > int64(ctrl.cfg.Telegram.FileLimitInBytes) {
		return c.Send("The file is too big")
	}

	reader, err := c.Bot().File(&doc.File)
	if err != nil {
		slog.Error("can't download document", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}
	defer reader.Close()

	imported, err := ctrl.advisorService.ImportPrices(ctx, reader)
	if err != nil {
		slog.Error("got error from advisorService.ImportPrices", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send("Import failed: the sheet must have name, cmp and dma columns and every row must parse")
	}

	return c.Send("Imported " + strconv.Itoa(imported) + " instruments")
}
