package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/data/session"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/transport/telegram"
	customMW "github.com/avoronin/dma_advisor_bot/internal/transport/telegram/middleware"
	"github.com/avoronin/dma_advisor_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, sess Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: sess}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) loadSession(c tele.Context) (model.Session, error) {
	ctx := utils.CreateCtxWithRqID(c)
	chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return model.Session{}, nil
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		// dispatch free-form text by the chat's session step
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.loadSession(c)
		if err != nil {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingBudgetAmount:
			return b.ctrl.ProcessSetBudget(c)
		case model.ExpectingTopUpAmount:
			return b.ctrl.ProcessTopUpAmount(c)
		default:
			slog.Error("unexpected chatSession state", slog.String("rqID", rqID), slog.Any("state", chatSession.State))
			return c.Send("enter one of the commands first")
		}
	})

	b.bot.Handle(tele.OnDocument, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.loadSession(c)
		if err != nil {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later")
		}

		c.Set("session", chatSession)

		if chatSession.State != model.ExpectingPricesDocument {
			return c.Send("use /import_prices before sending a file")
		}
		return b.ctrl.ProcessImportPrices(c)
	})

	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.loadSession(c)
		if err != nil {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later")
		}

		c.Set("session", chatSession)

		defer func() {
			_ = c.Respond()
		}()

		data := strings.TrimPrefix(c.Callback().Data, "\f")
		switch {
		case data == "topup_confirm":
			return b.ctrl.ConfirmTopUp(c)
		case data == "cancel":
			return b.ctrl.Cancel(c)
		case strings.HasPrefix(data, "buy:"):
			idx, err := strconv.Atoi(strings.TrimPrefix(data, "buy:"))
			if err != nil {
				slog.Error("can't parse buy option index", slog.String("rqID", rqID), slog.String("data", data))
				return c.Send("something went wrong, try again later")
			}
			return b.ctrl.ConfirmBuy(c, idx)
		default:
			slog.Error("unexpected callback data", slog.String("rqID", rqID), slog.String("data", data))
			return nil
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/set_budget", b.ctrl.InitSetBudget)
	b.bot.Handle("/budget", b.ctrl.BudgetStatus)
	b.bot.Handle("/topup_budget", b.ctrl.InitTopUp)
	b.bot.Handle("/reset_budget", b.ctrl.ResetBudget)
	b.bot.Handle("/strategy", b.ctrl.CalculateStrategy)
	b.bot.Handle("/portfolio", b.ctrl.PortfolioSummary)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/report", b.ctrl.Report)
	b.bot.Handle("/instrument", b.ctrl.InstrumentInfo)
	b.bot.Handle("/import_prices", b.ctrl.InitImportPrices)
}
