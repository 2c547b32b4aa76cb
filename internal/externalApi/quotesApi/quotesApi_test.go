package quotesApi

import (
	"testing"

	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawQuotes(columns []string, data [][]any) feedModel.RawQuotes {
	raw := feedModel.RawQuotes{}
	raw.Quotes.Columns = columns
	raw.Quotes.Data = data
	return raw
}

func TestParseRawQuotes(t *testing.T) {
	raw := rawQuotes(
		[]string{"NAME", "PRICE", "DMA", "STATUS"},
		[][]any{
			{"AAA", 101.5, 100.0, true},
			{"BBB", 55.0, nil, false},
		},
	)

	quotes, err := ParseRawQuotes(raw)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "AAA", quotes[0].Name)
	assert.True(t, quotes[0].Price.Equal(decimal.NewFromFloat(101.5)))
	assert.True(t, quotes[0].Dma.Equal(decimal.NewFromInt(100)))
	assert.True(t, quotes[0].Active)

	// null cell means no reading yet, not an error
	assert.True(t, quotes[1].Dma.IsZero())
	assert.False(t, quotes[1].Active)
}

func TestParseRawQuotes_ColumnOrderIndependent(t *testing.T) {
	raw := rawQuotes(
		[]string{"STATUS", "DMA", "PRICE", "NAME"},
		[][]any{
			{true, 100.0, 101.5, "AAA"},
		},
	)

	quotes, err := ParseRawQuotes(raw)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "AAA", quotes[0].Name)
	assert.True(t, quotes[0].Price.Equal(decimal.NewFromFloat(101.5)))
}

func TestParseRawQuotes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		data    [][]any
	}{
		{
			name:    "unknown column",
			columns: []string{"NAME", "VOLUME"},
			data:    [][]any{{"AAA", 1.0}},
		},
		{
			name:    "row shorter than columns",
			columns: []string{"NAME", "PRICE", "DMA", "STATUS"},
			data:    [][]any{{"AAA", 101.5}},
		},
		{
			name:    "type mismatch on price",
			columns: []string{"NAME", "PRICE", "DMA", "STATUS"},
			data:    [][]any{{"AAA", "101.5", 100.0, true}},
		},
		{
			name:    "empty instrument name",
			columns: []string{"NAME", "PRICE", "DMA", "STATUS"},
			data:    [][]any{{"", 101.5, 100.0, true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRawQuotes(rawQuotes(tt.columns, tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseRawQuotes_Empty(t *testing.T) {
	quotes, err := ParseRawQuotes(rawQuotes([]string{"NAME"}, nil))
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
