package xslsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	holdingsSheet = "Holdings"
	historySheet  = "History"

	dateFormat = "2006-01-02"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

// Generate renders the portfolio report into an xlsx workbook with summary,
// holdings and transaction-history sheets.
func (g *XSLSXGenerator) Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSummarySheet(f, report); err != nil {
		return nil, "", err
	}
	if err := g.fillHoldingsSheet(f, report.Holdings); err != nil {
		return nil, "", err
	}
	if err := g.fillHistorySheet(f, report.Transactions); err != nil {
		return nil, "", err
	}

	// Drop the default sheet.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
}

func (g *XSLSXGenerator) fillSummarySheet(f *excelize.File, report model.PortfolioReport) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	styleID, err := g.headerStyle(f)
	if err != nil {
		return err
	}

	rows := [][]any{
		{"Generated", report.GeneratedAt.Format(dateFormat)},
		{"Active lots", report.Summary.ActiveLots},
		{"Total investment", report.Summary.TotalInvestment.StringFixed(2)},
		{"Current value", report.Summary.CurrentValue.StringFixed(2)},
		{"Unrealized P&L", report.Summary.UnrealizedPnL.StringFixed(2)},
		{"Unrealized P&L %", report.Summary.UnrealizedPnLPct.StringFixed(2)},
		{"Realized P&L", report.Summary.RealizedPnL.StringFixed(2)},
		{"Short-term tax", report.Summary.ShortTermTax.StringFixed(2)},
		{"Long-term tax", report.Summary.LongTermTax.StringFixed(2)},
		{"Total tax", report.Summary.TotalTax.StringFixed(2)},
		{"Net profit", report.Summary.NetProfit.StringFixed(2)},
	}

	if report.Budget != nil {
		rows = append(rows,
			[]any{"Budget total", report.Budget.TotalAmount.StringFixed(2)},
			[]any{"Budget daily amount", report.Budget.DailyAmount.StringFixed(2)},
			[]any{"Budget used", report.Budget.UsedAmount.StringFixed(2)},
			[]any{"Budget reinvested profit", report.Budget.ReinvestedProfit.StringFixed(2)},
			[]any{"Budget available", report.Budget.Available().StringFixed(2)},
		)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetCellStyle(summarySheet, "A1", "A1", styleID)
}

func (g *XSLSXGenerator) fillHoldingsSheet(f *excelize.File, holdings []model.Holding) error {
	if _, err := f.NewSheet(holdingsSheet); err != nil {
		return err
	}

	styleID, err := g.headerStyle(f)
	if err != nil {
		return err
	}

	header := []any{"Instrument", "Buy price", "Quantity", "Buy date", "Invested"}
	if err := f.SetSheetRow(holdingsSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(holdingsSheet, "A1", "E1", styleID); err != nil {
		return err
	}

	for i, h := range holdings {
		row := []any{
			h.InstrumentName,
			h.BuyPrice.StringFixed(2),
			h.Quantity,
			h.BuyDate.Format(dateFormat),
			h.InvestedAmount().StringFixed(2),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(holdingsSheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

func (g *XSLSXGenerator) fillHistorySheet(f *excelize.File, transactions []model.Transaction) error {
	if _, err := f.NewSheet(historySheet); err != nil {
		return err
	}

	styleID, err := g.headerStyle(f)
	if err != nil {
		return err
	}

	header := []any{"Date", "Type", "Instrument", "Price", "Quantity", "Amount", "Profit"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(historySheet, "A1", "G1", styleID); err != nil {
		return err
	}

	for i, t := range transactions {
		profit := ""
		if t.Type == model.TransactionSell {
			profit = t.Profit.StringFixed(2)
		}
		row := []any{
			t.Date.Format(dateFormat),
			string(t.Type),
			t.InstrumentName,
			t.Price.StringFixed(2),
			t.Quantity,
			t.Amount.StringFixed(2),
			profit,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}
