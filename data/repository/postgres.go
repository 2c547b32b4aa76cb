package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/internal/converter/dbConverter"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/model/dbModel"
	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/avoronin/dma_advisor_bot/utils"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Postgres struct {
	db  *sqlx.DB
	cfg *config.Config
}

func NewPostgres(cfg *config.Config, db *sqlx.DB) *Postgres {
	return &Postgres{db: db, cfg: cfg}
}

func (r *Postgres) RegUser(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO users(chat_id) VALUES($1) ON CONFLICT (chat_id) DO NOTHING RETURNING user_id`

	slog.Debug("RegUser start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("RegUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("RegUser completed", slog.String("rqID", rqID))
		}
	}()

	err = r.db.QueryRowContext(ctx, query, chatID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) { // already registered
		return r.GetUserID(ctx, chatID)
	}
	if err != nil {
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) GetUserID(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT user_id FROM users WHERE chat_id = $1`

	slog.Debug("GetUserID start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetUserID failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserID completed", slog.String("rqID", rqID))
		}
	}()

	err = r.db.QueryRowContext(ctx, query, chatID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) UpsertInstruments(ctx context.Context, quotes []feedModel.QuoteInfo) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("UpsertInstruments start", slog.String("rqID", rqID), slog.Int("count", len(quotes)))
	defer func() {
		if err != nil {
			slog.Error("UpsertInstruments failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertInstruments completed", slog.String("rqID", rqID))
		}
	}()

	if len(quotes) == 0 {
		return nil
	}

	sb := strings.Builder{}
	args := make([]any, 0, len(quotes)*3)

	sb.WriteString(`INSERT INTO instruments (name, cmp, dma) VALUES `)

	for i, quote := range quotes {
		args = append(args, quote.Name, quote.Price, quote.Dma)

		start := i*3 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d)", start, start+1, start+2))

		if i < len(quotes)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`
		ON CONFLICT (name) DO UPDATE SET
			cmp = EXCLUDED.cmp,
			dma = EXCLUDED.dma,
			updated_at = now();
	`)

	_, err = r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *Postgres) GetInstruments(ctx context.Context) (instruments []model.Instrument, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT instrument_id, name, cmp, dma, updated_at
		FROM instruments
		ORDER BY name
		`

	slog.Debug("GetInstruments start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetInstruments failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetInstruments completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbInstrument dbModel.Instrument
		err = rows.StructScan(&dbInstrument)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, dbConverter.ConvertInstrument(dbInstrument))
	}

	return instruments, nil
}

func (r *Postgres) GetInstrumentByName(ctx context.Context, name string) (instrument model.Instrument, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT instrument_id, name, cmp, dma, updated_at
		FROM instruments
		WHERE name = $1
		`

	slog.Debug("GetInstrumentByName start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetInstrumentByName failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetInstrumentByName completed", slog.String("rqID", rqID))
		}
	}()

	dbInstrument := dbModel.Instrument{}
	err = r.db.QueryRowxContext(ctx, query, name).StructScan(&dbInstrument)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Instrument{}, ErrNotFound
	}
	if err != nil {
		return model.Instrument{}, err
	}

	return dbConverter.ConvertInstrument(dbInstrument), nil
}

// ReplaceRankings swaps the ranking rows for one date in a single
// transaction: the previous ranking for that date is overwritten, never
// appended to.
func (r *Postgres) ReplaceRankings(ctx context.Context, dt time.Time, ranked []model.RankedInstrument) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("ReplaceRankings start", slog.String("rqID", rqID), slog.Int("count", len(ranked)))
	defer func() {
		if err != nil {
			slog.Error("ReplaceRankings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ReplaceRankings completed", slog.String("rqID", rqID))
		}
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM rankings WHERE dt = $1::date`, dt)
	if err != nil {
		return err
	}

	if len(ranked) > 0 {
		sb := strings.Builder{}
		args := make([]any, 0, len(ranked)*4)

		sb.WriteString(`INSERT INTO rankings (instrument_id, rank, deviation_pct, dt) VALUES `)

		for i, row := range ranked {
			args = append(args, row.InstrumentID, row.Rank, row.DeviationPct, dt)

			start := i*4 + 1
			sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d::date)", start, start+1, start+2, start+3))

			if i < len(ranked)-1 {
				sb.WriteString(",")
			}
		}

		_, err = tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Postgres) getHoldings(ctx context.Context, userID int64, query string) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("getHoldings start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("getHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("getHoldings completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbHolding dbModel.Holding
		err = rows.StructScan(&dbHolding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(dbHolding))
	}

	return holdings, nil
}

func (r *Postgres) GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error) {
	query := `
		SELECT h.holding_id, h.user_id, h.instrument_id, i.name, h.buy_price,
		       h.quantity, h.buy_date, h.sell_price, h.sell_date, h.active
		FROM holdings h
		JOIN instruments i ON i.instrument_id = h.instrument_id
		WHERE h.user_id = $1
		ORDER BY h.holding_id
		`

	return r.getHoldings(ctx, userID, query)
}

func (r *Postgres) GetActiveHoldings(ctx context.Context, userID int64) ([]model.Holding, error) {
	query := `
		SELECT h.holding_id, h.user_id, h.instrument_id, i.name, h.buy_price,
		       h.quantity, h.buy_date, h.sell_price, h.sell_date, h.active
		FROM holdings h
		JOIN instruments i ON i.instrument_id = h.instrument_id
		WHERE h.user_id = $1
		AND h.active
		ORDER BY h.holding_id
		`

	return r.getHoldings(ctx, userID, query)
}

func insertHolding(ctx context.Context, ext sqlx.ExtContext, holding model.Holding) (holdingID int64, err error) {
	query := `
		INSERT INTO holdings(user_id, instrument_id, buy_price, quantity, buy_date, active)
		VALUES($1, $2, $3, $4, $5, true)
		RETURNING holding_id
		`

	err = ext.QueryRowxContext(
		ctx,
		query,
		holding.UserID,
		holding.InstrumentID,
		holding.BuyPrice,
		holding.Quantity,
		holding.BuyDate,
	).Scan(&holdingID)
	if err != nil {
		return 0, err
	}

	return holdingID, nil
}

func closeHolding(ctx context.Context, ext sqlx.ExtContext, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time) error {
	query := `
		UPDATE holdings
		SET active = false, sell_price = $2, sell_date = $3
		WHERE holding_id = $1
		AND active
		`

	res, err := ext.ExecContext(ctx, query, holdingID, sellPrice, sellDate)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func upsertBudget(ctx context.Context, ext sqlx.ExtContext, budget model.Budget) error {
	query := `
		INSERT INTO budgets(user_id, total_amount, daily_amount, start_date, used_amount, reinvested_profit)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			total_amount = EXCLUDED.total_amount,
			daily_amount = EXCLUDED.daily_amount,
			start_date = EXCLUDED.start_date,
			used_amount = EXCLUDED.used_amount,
			reinvested_profit = EXCLUDED.reinvested_profit
		`

	_, err := ext.ExecContext(
		ctx,
		query,
		budget.UserID,
		budget.TotalAmount,
		budget.DailyAmount,
		budget.StartDate,
		budget.UsedAmount,
		budget.ReinvestedProfit,
	)
	return err
}

// ExecuteBuy persists a confirmed buy atomically: the new lot and the debited
// budget commit together or not at all.
func (r *Postgres) ExecuteBuy(ctx context.Context, holding model.Holding, budget model.Budget) (holdingID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("ExecuteBuy start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("ExecuteBuy failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ExecuteBuy completed", slog.String("rqID", rqID))
		}
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	holdingID, err = insertHolding(ctx, tx, holding)
	if err != nil {
		return 0, err
	}

	if err = upsertBudget(ctx, tx, budget); err != nil {
		return 0, err
	}

	return holdingID, tx.Commit()
}

// ExecuteSell closes the lot and books the updated budget in one transaction,
// so a realized profit is never lost between the two writes.
func (r *Postgres) ExecuteSell(ctx context.Context, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time, budget model.Budget) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("ExecuteSell start", slog.String("rqID", rqID), slog.Int64("holdingID", holdingID))
	defer func() {
		if err != nil {
			slog.Error("ExecuteSell failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ExecuteSell completed", slog.String("rqID", rqID))
		}
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err = closeHolding(ctx, tx, holdingID, sellPrice, sellDate); err != nil {
		return err
	}

	if err = upsertBudget(ctx, tx, budget); err != nil {
		return err
	}

	return tx.Commit()
}

// CloseHolding flips the lot inactive and stamps the sell price/date. The lot
// row is never deleted. Used alone when the sell books nothing into the
// budget.
func (r *Postgres) CloseHolding(ctx context.Context, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("CloseHolding start", slog.String("rqID", rqID), slog.Int64("holdingID", holdingID))
	defer func() {
		if err != nil {
			slog.Error("CloseHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("CloseHolding completed", slog.String("rqID", rqID))
		}
	}()

	return closeHolding(ctx, r.db, holdingID, sellPrice, sellDate)
}

func (r *Postgres) GetBudget(ctx context.Context, userID int64) (budget model.Budget, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT user_id, total_amount, daily_amount, start_date, used_amount, reinvested_profit
		FROM budgets
		WHERE user_id = $1
		`

	slog.Debug("GetBudget start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetBudget failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetBudget completed", slog.String("rqID", rqID))
		}
	}()

	dbBudget := dbModel.Budget{}
	err = r.db.QueryRowxContext(ctx, query, userID).StructScan(&dbBudget)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Budget{}, ErrNotFound
	}
	if err != nil {
		return model.Budget{}, err
	}

	return dbConverter.ConvertBudget(dbBudget), nil
}

func (r *Postgres) UpsertBudget(ctx context.Context, budget model.Budget) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("UpsertBudget start", slog.String("rqID", rqID), slog.Int64("userID", budget.UserID))
	defer func() {
		if err != nil {
			slog.Error("UpsertBudget failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertBudget completed", slog.String("rqID", rqID))
		}
	}()

	return upsertBudget(ctx, r.db, budget)
}

func (r *Postgres) DeleteBudget(ctx context.Context, userID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `DELETE FROM budgets WHERE user_id = $1`

	slog.Debug("DeleteBudget start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteBudget failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteBudget completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
