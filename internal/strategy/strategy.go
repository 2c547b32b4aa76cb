// Package strategy holds the pure decision engine: deviation ranking over the
// instrument universe and the buy/sell selection policy. It performs no I/O;
// the service layer feeds it snapshots and persists whatever it decides.
package strategy

import (
	"sort"

	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/shopspring/decimal"
)

// Config carries the policy knobs.
type Config struct {
	// TopOptions is how many not-yet-held ranked instruments are offered as
	// buy options.
	TopOptions int
	// ProfitThresholdPct is the percent gain above which a lot qualifies for
	// profit-taking.
	ProfitThresholdPct decimal.Decimal
	// AveragingLossPct is the (negative) percent loss at which averaging-down
	// into an existing lot is recommended.
	AveragingLossPct decimal.Decimal
	// DefaultQuantity is the recommended quantity when no daily budget amount
	// is set.
	DefaultQuantity int
}

func DefaultConfig() Config {
	return Config{
		TopOptions:         5,
		ProfitThresholdPct: decimal.NewFromFloat(6.0),
		AveragingLossPct:   decimal.NewFromFloat(-2.5),
		DefaultQuantity:    1,
	}
}

// Rank orders instruments ascending by deviation from their moving average,
// most undervalued first. The sort is stable: equal deviations keep input
// order. Ranks are the contiguous 1-based positions after sorting.
func Rank(instruments []model.Instrument) []model.RankedInstrument {
	ranked := make([]model.RankedInstrument, 0, len(instruments))
	for _, instrument := range instruments {
		ranked = append(ranked, model.RankedInstrument{
			Instrument:   instrument,
			DeviationPct: instrument.Deviation(),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DeviationPct.LessThan(ranked[j].DeviationPct)
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}

// Decide produces at most one buy recommendation and at most one sell
// recommendation from the current ranking, holdings and daily budget amount.
//
// Buy: the top TopOptions ranked instruments not currently held are always
// offered first. Averaging-down is only reached when every one of those top
// instruments is already held; then the first active lot (in holdings order)
// whose loss is at or below AveragingLossPct wins.
//
// Sell: among active lots above ProfitThresholdPct, the most recently bought
// one is selected (LIFO). Exactly one sell candidate per cycle, never more.
func Decide(ranked []model.RankedInstrument, holdings []model.Holding, dailyAmount decimal.Decimal, cfg Config) model.Decision {
	active := make([]model.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.Active {
			active = append(active, h)
		}
	}

	priceByInstrument := make(map[int64]model.RankedInstrument, len(ranked))
	for _, r := range ranked {
		priceByInstrument[r.InstrumentID] = r
	}

	return model.Decision{
		Buy:  decideBuy(ranked, active, priceByInstrument, dailyAmount, cfg),
		Sell: decideSell(active, priceByInstrument, cfg),
	}
}

func decideBuy(
	ranked []model.RankedInstrument,
	active []model.Holding,
	priceByInstrument map[int64]model.RankedInstrument,
	dailyAmount decimal.Decimal,
	cfg Config,
) *model.BuyDecision {
	held := make(map[int64]struct{}, len(active))
	for _, h := range active {
		held[h.InstrumentID] = struct{}{}
	}

	top := ranked
	if cfg.TopOptions > 0 && len(top) > cfg.TopOptions {
		top = top[:cfg.TopOptions]
	}

	options := make([]model.BuyOption, 0, len(top))
	for _, r := range top {
		if _, ok := held[r.InstrumentID]; ok {
			continue
		}
		quantity := recommendedQuantity(r.Cmp, dailyAmount, cfg.DefaultQuantity)
		options = append(options, model.BuyOption{
			Instrument:     r,
			Quantity:       quantity,
			RequiredAmount: r.Cmp.Mul(decimal.NewFromInt(int64(quantity))),
		})
	}

	if len(options) > 0 {
		return &model.BuyDecision{Options: options}
	}

	if len(top) == 0 {
		return nil
	}

	// The whole top of the ranking is already held: look for an averaging-down
	// candidate. First lot in holdings order wins, not the deepest loss.
	for i, h := range active {
		r, ok := priceByInstrument[h.InstrumentID]
		if !ok {
			continue
		}
		if h.ProfitPercentAt(r.Cmp).GreaterThan(cfg.AveragingLossPct) {
			continue
		}
		quantity := recommendedQuantity(r.Cmp, dailyAmount, cfg.DefaultQuantity)
		return &model.BuyDecision{
			Averaging: true,
			Holding:   &active[i],
			Options: []model.BuyOption{{
				Instrument:     r,
				Quantity:       quantity,
				RequiredAmount: r.Cmp.Mul(decimal.NewFromInt(int64(quantity))),
			}},
		}
	}

	return nil
}

func decideSell(active []model.Holding, priceByInstrument map[int64]model.RankedInstrument, cfg Config) *model.SellDecision {
	var candidate *model.SellDecision

	for _, h := range active {
		r, ok := priceByInstrument[h.InstrumentID]
		if !ok {
			continue
		}
		profitPct := h.ProfitPercentAt(r.Cmp)
		if !profitPct.GreaterThan(cfg.ProfitThresholdPct) {
			continue
		}
		// LIFO: the latest buy date wins; on equal dates the earlier-listed
		// lot is kept (strictly-greater comparison).
		if candidate == nil || h.BuyDate.After(candidate.Holding.BuyDate) {
			candidate = &model.SellDecision{
				Holding:   h,
				Price:     r.Cmp,
				ProfitPct: profitPct,
			}
		}
	}

	return candidate
}

// recommendedQuantity is max(1, floor(dailyAmount/price)), falling back to
// the configured default when no daily amount is set.
func recommendedQuantity(price, dailyAmount decimal.Decimal, defaultQuantity int) int {
	if dailyAmount.IsZero() || price.IsZero() {
		if defaultQuantity < 1 {
			return 1
		}
		return defaultQuantity
	}

	quantity := int(dailyAmount.Div(price).IntPart())
	if quantity < 1 {
		return 1
	}
	return quantity
}
