package advisorService

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/avoronin/dma_advisor_bot/data/repository"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/avoronin/dma_advisor_bot/internal/service"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/shopspring/decimal"
)

// importChunkSize is how many CSV rows are parsed between cancellation
// checks.
const importChunkSize = 100

// FillQuotesCache pulls the instrument universe from the quotes feed, upserts
// it into the store and refreshes the redis quote cache. Runs as a scheduled
// job.
func (s *AdvisorService) FillQuotesCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.FillQuotesCache"

	slog.Debug("FillQuotesCache start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("FillQuotesCache finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	quotes, err := s.quotesApi.GetQuotes(ctx)
	if err != nil {
		slog.Error("got error from quotesApi.GetQuotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	active := make([]feedModel.QuoteInfo, 0, len(quotes))
	for _, quote := range quotes {
		if quote.Active {
			active = append(active, quote)
		}
	}

	err = s.repo.UpsertInstruments(ctx, active)
	if err != nil {
		slog.Error("got error from repo.UpsertInstruments", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	err = s.cache.SetQuotes(ctx, active)
	if err != nil {
		slog.Error("got error from cache.SetQuotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// GetInstrumentInfo resolves one instrument, preferring the fresher cached
// quote over the stored row.
func (s *AdvisorService) GetInstrumentInfo(ctx context.Context, name string) (model.Instrument, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.GetInstrumentInfo"

	slog.Debug("GetInstrumentInfo start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	defer func() {
		slog.Debug("GetInstrumentInfo finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	}()

	instrument, err := s.repo.GetInstrumentByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Instrument{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetInstrumentByName", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Instrument{}, err
	}

	quote, err := s.cache.GetQuote(ctx, name)
	if err == nil {
		if !quote.Active {
			return model.Instrument{}, service.ErrInstrumentNotActive
		}
		instrument.Cmp = quote.Price
		instrument.Dma = quote.Dma
	} else {
		slog.Warn("can't get quote from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return instrument, nil
}

// ImportPrices parses a CSV price sheet and upserts the instrument universe.
// The header is mapped strictly onto known column aliases and every row must
// parse; one bad row fails the whole import. Cancellation is checked between
// row chunks.
func (s *AdvisorService) ImportPrices(ctx context.Context, reader io.Reader) (imported int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AdvisorService.ImportPrices"

	slog.Debug("ImportPrices start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("ImportPrices failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ImportPrices finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("imported", imported))
		}
	}()

	quotes, err := parsePricesCsv(ctx, reader)
	if err != nil {
		return 0, err
	}

	err = s.repo.UpsertInstruments(ctx, quotes)
	if err != nil {
		return 0, err
	}

	err = s.cache.SetQuotes(ctx, quotes)
	if err != nil {
		return 0, err
	}

	return len(quotes), nil
}

// column indexes of the price sheet after header resolution.
type priceColumns struct {
	name int
	cmp  int
	dma  int
}

func parsePricesCsv(ctx context.Context, reader io.Reader) ([]feedModel.QuoteInfo, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns, err := resolvePriceColumns(header)
	if err != nil {
		return nil, err
	}

	var quotes []feedModel.QuoteInfo

	for row := 2; ; row++ {
		if (row-2)%importChunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		quote, err := parsePriceRecord(record, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil, errors.New("price sheet has no data rows")
	}

	return quotes, nil
}

// resolvePriceColumns maps the sheet's heterogeneous column names onto the
// internal record shape; unknown headers are ignored, missing required
// columns fail fast.
func resolvePriceColumns(header []string) (priceColumns, error) {
	columns := priceColumns{name: -1, cmp: -1, dma: -1}

	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(column)) {
		case "name", "instrument", "ticker", "symbol", "scrip":
			columns.name = i
		case "cmp", "price", "current price", "market price":
			columns.cmp = i
		case "dma", "ma", "moving average", "200dma":
			columns.dma = i
		}
	}

	if columns.name == -1 {
		return priceColumns{}, errors.New("price sheet has no instrument name column")
	}
	if columns.cmp == -1 {
		return priceColumns{}, errors.New("price sheet has no cmp column")
	}
	if columns.dma == -1 {
		return priceColumns{}, errors.New("price sheet has no dma column")
	}

	return columns, nil
}

func parsePriceRecord(record []string, columns priceColumns) (feedModel.QuoteInfo, error) {
	maxIdx := columns.name
	if columns.cmp > maxIdx {
		maxIdx = columns.cmp
	}
	if columns.dma > maxIdx {
		maxIdx = columns.dma
	}
	if len(record) <= maxIdx {
		return feedModel.QuoteInfo{}, fmt.Errorf("expected at least %d columns, got %d", maxIdx+1, len(record))
	}

	name := strings.TrimSpace(record[columns.name])
	if name == "" {
		return feedModel.QuoteInfo{}, errors.New("empty instrument name")
	}

	cmp, err := decimal.NewFromString(strings.TrimSpace(record[columns.cmp]))
	if err != nil {
		return feedModel.QuoteInfo{}, fmt.Errorf("invalid cmp value %q: %w", record[columns.cmp], err)
	}

	dma, err := decimal.NewFromString(strings.TrimSpace(record[columns.dma]))
	if err != nil {
		return feedModel.QuoteInfo{}, fmt.Errorf("invalid dma value %q: %w", record[columns.dma], err)
	}

	return feedModel.QuoteInfo{
		Name:   name,
		Price:  cmp,
		Dma:    dma,
		Active: true,
	}, nil
}
