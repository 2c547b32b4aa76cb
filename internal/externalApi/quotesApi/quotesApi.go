package quotesApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/internal/externalApi"
	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type QuotesApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *QuotesApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuotesApi.Url)
	return &QuotesApi{client: client}
}

// GetQuotes fetches the whole instrument universe with current price and
// moving-average reference.
func (a *QuotesApi) GetQuotes(ctx context.Context) ([]feedModel.QuoteInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/quotes.json"
	params := map[string]string{
		"columns": "NAME,PRICE,DMA,STATUS",
	}

	slog.Debug("start QuotesApi.GetQuotes request", slog.String("rqID", rqID))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		SetContext(ctx).
		Get(url)

	if err != nil {
		slog.Error("error while dialing QuotesApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	rawQuotes := feedModel.RawQuotes{}
	err = json.Unmarshal(resp.Body(), &rawQuotes)
	if err != nil {
		slog.Error("can't unmarshal response into feedModel.RawQuotes", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	res, err := ParseRawQuotes(rawQuotes)
	if err != nil {
		slog.Error("can't parse raw quotes", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	slog.Debug("QuotesApi.GetQuotes request complete", slog.String("rqID", rqID))

	return res, nil
}

// GetQuote fetches a single instrument by name.
func (a *QuotesApi) GetQuote(ctx context.Context, name string) (feedModel.QuoteInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/quotes.json"
	params := map[string]string{
		"columns": "NAME,PRICE,DMA,STATUS",
		"names":   name,
	}

	slog.Debug("start QuotesApi.GetQuote request", slog.String("rqID", rqID), slog.String("name", name))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		SetContext(ctx).
		Get(url)

	if err != nil {
		slog.Error("error while dialing QuotesApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return feedModel.QuoteInfo{}, err
	}

	rawQuotes := feedModel.RawQuotes{}
	err = json.Unmarshal(resp.Body(), &rawQuotes)
	if err != nil {
		slog.Error("can't unmarshal response into feedModel.RawQuotes", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return feedModel.QuoteInfo{}, err
	}

	if len(rawQuotes.Quotes.Data) == 0 {
		return feedModel.QuoteInfo{}, externalApi.ErrNotFound
	}

	res, err := ParseRawQuotes(rawQuotes)
	if err != nil {
		slog.Error("can't parse raw quotes", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return feedModel.QuoteInfo{}, err
	}

	if len(res) != 1 {
		return feedModel.QuoteInfo{}, errors.New("unexpected quotes length, expected exactly 1 element")
	}

	slog.Debug("QuotesApi.GetQuote request complete", slog.String("rqID", rqID))

	return res[0], nil
}

// ParseRawQuotes maps the feed's columnar rows onto QuoteInfo, column by
// column. Unknown columns, missing values and type mismatches fail the whole
// batch - rows are never silently defaulted.
func ParseRawQuotes(rawQuotes feedModel.RawQuotes) ([]feedModel.QuoteInfo, error) {
	res := make([]feedModel.QuoteInfo, 0, len(rawQuotes.Quotes.Data))

	for i, row := range rawQuotes.Quotes.Data {
		if len(row) != len(rawQuotes.Quotes.Columns) {
			return nil, fmt.Errorf("row %d length %d does not match columns length %d", i, len(row), len(rawQuotes.Quotes.Columns))
		}

		quote := feedModel.QuoteInfo{}

		for j, column := range rawQuotes.Quotes.Columns {
			ok := true
			switch column {
			case "NAME":
				quote.Name, ok = row[j].(string)
			case "PRICE":
				quote.Price, ok = parseDecimalCell(row[j])
			case "DMA":
				quote.Dma, ok = parseDecimalCell(row[j])
			case "STATUS":
				quote.Active, ok = row[j].(bool)
			default:
				return nil, fmt.Errorf("unknown column %s", column)
			}

			if !ok {
				return nil, fmt.Errorf("invalid type %s = %v", column, row[j])
			}
		}

		if quote.Name == "" {
			return nil, fmt.Errorf("row %d has empty instrument name", i)
		}

		res = append(res, quote)
	}

	return res, nil
}

func parseDecimalCell(cell any) (decimal.Decimal, bool) {
	if cell == nil { // the feed sends null while an instrument has no reading
		return decimal.Zero, true
	}
	f, ok := cell.(float64)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
