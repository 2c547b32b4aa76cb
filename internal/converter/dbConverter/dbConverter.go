package dbConverter

import (
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/model/dbModel"
)

func ConvertInstrument(dbInstrument dbModel.Instrument) model.Instrument {
	return model.Instrument{
		InstrumentID: dbInstrument.InstrumentID,
		Name:         dbInstrument.Name,
		Cmp:          dbInstrument.Cmp,
		Dma:          dbInstrument.Dma,
		UpdatedAt:    dbInstrument.UpdatedAt,
	}
}

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	holding := model.Holding{
		HoldingID:      dbHolding.HoldingID,
		UserID:         dbHolding.UserID,
		InstrumentID:   dbHolding.InstrumentID,
		InstrumentName: dbHolding.InstrumentName,
		BuyPrice:       dbHolding.BuyPrice,
		Quantity:       dbHolding.Quantity,
		BuyDate:        dbHolding.BuyDate,
		Active:         dbHolding.Active,
	}

	if dbHolding.SellPrice.Valid {
		holding.SellPrice = dbHolding.SellPrice.Decimal
	}
	if dbHolding.SellDate.Valid {
		holding.SellDate = dbHolding.SellDate.Time
	}

	return holding
}

func ConvertBudget(dbBudget dbModel.Budget) model.Budget {
	return model.Budget{
		UserID:           dbBudget.UserID,
		TotalAmount:      dbBudget.TotalAmount,
		DailyAmount:      dbBudget.DailyAmount,
		StartDate:        dbBudget.StartDate,
		UsedAmount:       dbBudget.UsedAmount,
		ReinvestedProfit: dbBudget.ReinvestedProfit,
	}
}
