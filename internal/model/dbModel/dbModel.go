package dbModel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Instrument struct {
	InstrumentID int64           `db:"instrument_id"`
	Name         string          `db:"name"`
	Cmp          decimal.Decimal `db:"cmp"`
	Dma          decimal.Decimal `db:"dma"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

type Holding struct {
	HoldingID      int64               `db:"holding_id"`
	UserID         int64               `db:"user_id"`
	InstrumentID   int64               `db:"instrument_id"`
	InstrumentName string              `db:"name"`
	BuyPrice       decimal.Decimal     `db:"buy_price"`
	Quantity       int                 `db:"quantity"`
	BuyDate        time.Time           `db:"buy_date"`
	SellPrice      decimal.NullDecimal `db:"sell_price"`
	SellDate       sql.NullTime        `db:"sell_date"`
	Active         bool                `db:"active"`
}

type Budget struct {
	UserID           int64           `db:"user_id"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	DailyAmount      decimal.Decimal `db:"daily_amount"`
	StartDate        time.Time       `db:"start_date"`
	UsedAmount       decimal.Decimal `db:"used_amount"`
	ReinvestedProfit decimal.Decimal `db:"reinvested_profit"`
}
