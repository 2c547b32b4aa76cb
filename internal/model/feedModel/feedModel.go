package feedModel

import "github.com/shopspring/decimal"

// QuoteInfo is one instrument snapshot from the quotes feed: current market
// price plus the moving-average reference the feed computes for it.
type QuoteInfo struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Dma    decimal.Decimal `json:"dma"`
	Active bool            `json:"active"`
}

// RawQuotes mirrors the feed's columnar payload: a column-name list plus rows
// of heterogeneous values that must be mapped strictly, column by column.
type RawQuotes struct {
	Quotes struct {
		Columns []string `json:"columns"`
		Data    [][]any  `json:"data"`
	} `json:"quotes"`
}
