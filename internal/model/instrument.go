package model

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Instrument struct {
	InstrumentID int64
	Name         string
	Cmp          decimal.Decimal // current market price
	Dma          decimal.Decimal // moving-average reference
	UpdatedAt    time.Time
}

// Deviation returns the percentage distance of CMP from DMA, negative when
// undervalued. A zero DMA yields 0 - that is a data-quality signal, not a
// real reading.
func (i Instrument) Deviation() decimal.Decimal {
	if i.Dma.IsZero() {
		return decimal.Zero
	}
	return i.Cmp.Sub(i.Dma).Div(i.Dma).Mul(hundred)
}

// RankedInstrument is one row of a daily ranking: rank 1 carries the lowest
// (most negative) deviation.
type RankedInstrument struct {
	Instrument
	Rank         int
	DeviationPct decimal.Decimal
}
