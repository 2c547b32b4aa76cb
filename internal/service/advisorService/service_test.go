package advisorService

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/data/repository"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/avoronin/dma_advisor_bot/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChatID = int64(777)
	testUserID = int64(1)
)

var testNow = time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	instruments   []model.Instrument
	holdings      []model.Holding
	budgets       map[int64]model.Budget
	rankings      []model.RankedInstrument
	rankingDt     time.Time
	upserted      []feedModel.QuoteInfo
	nextHoldingID int64

	budgetGetErr    error // injected into GetBudget
	budgetUpsertErr error // injected into ExecuteBuy / ExecuteSell
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{budgets: map[int64]model.Budget{}, nextHoldingID: 1}
}

func (r *fakeRepo) RegUser(_ context.Context, _ int64) (int64, error) {
	return testUserID, nil
}

func (r *fakeRepo) GetUserID(_ context.Context, chatID int64) (int64, error) {
	if chatID != testChatID {
		return 0, repository.ErrNotFound
	}
	return testUserID, nil
}

func (r *fakeRepo) UpsertInstruments(_ context.Context, quotes []feedModel.QuoteInfo) error {
	r.upserted = append(r.upserted, quotes...)
	return nil
}

func (r *fakeRepo) GetInstruments(_ context.Context) ([]model.Instrument, error) {
	return r.instruments, nil
}

func (r *fakeRepo) GetInstrumentByName(_ context.Context, name string) (model.Instrument, error) {
	for _, instrument := range r.instruments {
		if instrument.Name == name {
			return instrument, nil
		}
	}
	return model.Instrument{}, repository.ErrNotFound
}

func (r *fakeRepo) ReplaceRankings(_ context.Context, dt time.Time, ranked []model.RankedInstrument) error {
	r.rankingDt = dt
	r.rankings = ranked
	return nil
}

func (r *fakeRepo) GetHoldings(_ context.Context, _ int64) ([]model.Holding, error) {
	return r.holdings, nil
}

func (r *fakeRepo) GetActiveHoldings(_ context.Context, _ int64) ([]model.Holding, error) {
	active := make([]model.Holding, 0, len(r.holdings))
	for _, h := range r.holdings {
		if h.Active {
			active = append(active, h)
		}
	}
	return active, nil
}

func (r *fakeRepo) ExecuteBuy(_ context.Context, holding model.Holding, budget model.Budget) (int64, error) {
	if r.budgetUpsertErr != nil {
		return 0, r.budgetUpsertErr
	}
	holding.HoldingID = r.nextHoldingID
	r.nextHoldingID++
	r.holdings = append(r.holdings, holding)
	r.budgets[budget.UserID] = budget
	return holding.HoldingID, nil
}

func (r *fakeRepo) ExecuteSell(_ context.Context, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time, budget model.Budget) error {
	if r.budgetUpsertErr != nil {
		return r.budgetUpsertErr
	}
	for i, h := range r.holdings {
		if h.HoldingID == holdingID && h.Active {
			r.holdings[i].Active = false
			r.holdings[i].SellPrice = sellPrice
			r.holdings[i].SellDate = sellDate
			r.budgets[budget.UserID] = budget
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) CloseHolding(_ context.Context, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time) error {
	for i, h := range r.holdings {
		if h.HoldingID == holdingID && h.Active {
			r.holdings[i].Active = false
			r.holdings[i].SellPrice = sellPrice
			r.holdings[i].SellDate = sellDate
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) GetBudget(_ context.Context, userID int64) (model.Budget, error) {
	if r.budgetGetErr != nil {
		return model.Budget{}, r.budgetGetErr
	}
	budget, ok := r.budgets[userID]
	if !ok {
		return model.Budget{}, repository.ErrNotFound
	}
	return budget, nil
}

func (r *fakeRepo) UpsertBudget(_ context.Context, budget model.Budget) error {
	r.budgets[budget.UserID] = budget
	return nil
}

func (r *fakeRepo) DeleteBudget(_ context.Context, userID int64) error {
	if _, ok := r.budgets[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.budgets, userID)
	return nil
}

type fakeCache struct {
	quotes      []feedModel.QuoteInfo
	quoteByName map[string]feedModel.QuoteInfo
	flushed     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{quoteByName: map[string]feedModel.QuoteInfo{}}
}

func (c *fakeCache) SetQuotes(_ context.Context, quotes []feedModel.QuoteInfo) error {
	c.quotes = append(c.quotes, quotes...)
	return nil
}

func (c *fakeCache) GetQuote(_ context.Context, name string) (feedModel.QuoteInfo, error) {
	quote, ok := c.quoteByName[name]
	if !ok {
		return feedModel.QuoteInfo{}, errors.New("cache miss")
	}
	return quote, nil
}

func (c *fakeCache) GetPortfolioSummary(_ context.Context, _ int64) (model.PortfolioSummary, error) {
	return model.PortfolioSummary{}, errors.New("cache miss")
}

func (c *fakeCache) SetPortfolioSummary(_ context.Context, _ int64, _ model.PortfolioSummary) error {
	return nil
}

func (c *fakeCache) FlushPortfolio(_ context.Context, _ int64) error {
	c.flushed++
	return nil
}

type fakeQuotesApi struct {
	quotes []feedModel.QuoteInfo
}

func (a *fakeQuotesApi) GetQuotes(_ context.Context) ([]feedModel.QuoteInfo, error) {
	return a.quotes, nil
}

func (a *fakeQuotesApi) GetQuote(_ context.Context, name string) (feedModel.QuoteInfo, error) {
	for _, quote := range a.quotes {
		if quote.Name == name {
			return quote, nil
		}
	}
	return feedModel.QuoteInfo{}, errors.New("not found")
}

func newTestService(repo *fakeRepo, cache *fakeCache, quotesApi *fakeQuotesApi) *AdvisorService {
	cfg := &config.Config{
		Strategy: config.Strategy{
			TopOptions:         5,
			ProfitThresholdPct: 6.0,
			AveragingLossPct:   -2.5,
			DefaultQuantity:    1,
		},
	}
	srv := New(cfg, repo, cache, quotesApi, nil, nil)
	srv.now = func() time.Time { return testNow }
	return srv
}

func configuredBudget(t *testing.T, repo *fakeRepo, total int64) {
	t.Helper()
	budget, err := model.NewBudget(testUserID, decimal.NewFromInt(total), testNow.AddDate(0, 0, -7))
	require.NoError(t, err)
	repo.budgets[testUserID] = budget
}

func testInstrument(id int64, name string, cmp, dma int64) model.Instrument {
	return model.Instrument{
		InstrumentID: id,
		Name:         name,
		Cmp:          decimal.NewFromInt(cmp),
		Dma:          decimal.NewFromInt(dma),
	}
}

func TestSetBudget(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	srv := newTestService(repo, cache, &fakeQuotesApi{})

	budget, err := srv.SetBudget(context.Background(), testChatID, decimal.NewFromInt(50000), testNow)
	require.NoError(t, err)

	assert.True(t, budget.DailyAmount.Equal(decimal.NewFromInt(1000)))
	assert.Contains(t, repo.budgets, testUserID)
	assert.Equal(t, 1, cache.flushed)
}

func TestSetBudget_BelowMinimum(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	_, err := srv.SetBudget(context.Background(), testChatID, decimal.NewFromInt(4999), testNow)
	assert.ErrorIs(t, err, model.ErrBudgetTotalBelowMinimum)
	assert.Empty(t, repo.budgets)
}

func TestTopUp(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	budget, err := srv.TopUp(context.Background(), testChatID, decimal.NewFromInt(25000))
	require.NoError(t, err)

	assert.True(t, budget.TotalAmount.Equal(decimal.NewFromInt(75000)))
	assert.True(t, budget.DailyAmount.Equal(decimal.NewFromInt(1500)))
	assert.True(t, repo.budgets[testUserID].TotalAmount.Equal(decimal.NewFromInt(75000)))
}

func TestTopUp_NotConfigured(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	_, err := srv.TopUp(context.Background(), testChatID, decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, service.ErrBudgetNotConfigured)
}

func TestPreviewTopUp_DoesNotPersist(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	projected, err := srv.PreviewTopUp(context.Background(), testChatID, decimal.NewFromInt(25000))
	require.NoError(t, err)

	assert.True(t, projected.TotalAmount.Equal(decimal.NewFromInt(75000)))
	assert.True(t, repo.budgets[testUserID].TotalAmount.Equal(decimal.NewFromInt(50000)))
}

func TestResetBudget_NotConfigured(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	err := srv.ResetBudget(context.Background(), testChatID)
	assert.ErrorIs(t, err, service.ErrBudgetNotConfigured)
}

func TestConfirmBuy(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	srv := newTestService(repo, cache, &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	pending := model.PendingBuy{
		InstrumentID:   1,
		InstrumentName: "AAA",
		Price:          decimal.NewFromInt(100),
		Quantity:       3,
	}

	execution, err := srv.ConfirmBuy(context.Background(), testChatID, pending)
	require.NoError(t, err)

	assert.Equal(t, 3, execution.Quantity)
	assert.False(t, execution.Clipped)
	assert.True(t, execution.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, testNow, execution.Holding.BuyDate)

	require.Len(t, repo.holdings, 1)
	assert.True(t, repo.holdings[0].Active)
	assert.True(t, repo.budgets[testUserID].UsedAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 1, cache.flushed)
}

func TestConfirmBuy_ClipsToAvailable(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	budget := repo.budgets[testUserID]
	require.NoError(t, budget.RecordInvestment(decimal.NewFromInt(49750))) // 250 left
	repo.budgets[testUserID] = budget

	pending := model.PendingBuy{
		InstrumentID:   1,
		InstrumentName: "AAA",
		Price:          decimal.NewFromInt(100),
		Quantity:       5,
	}

	execution, err := srv.ConfirmBuy(context.Background(), testChatID, pending)
	require.NoError(t, err)

	assert.Equal(t, 2, execution.Quantity)
	assert.True(t, execution.Clipped)
	assert.True(t, execution.Amount.Equal(decimal.NewFromInt(200)))
	assert.True(t, repo.budgets[testUserID].Available().Equal(decimal.NewFromInt(50)))
}

func TestConfirmBuy_InsufficientEvenForOne(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	budget := repo.budgets[testUserID]
	require.NoError(t, budget.RecordInvestment(decimal.NewFromInt(49950))) // 50 left
	repo.budgets[testUserID] = budget

	pending := model.PendingBuy{
		InstrumentID:   1,
		InstrumentName: "AAA",
		Price:          decimal.NewFromInt(100),
		Quantity:       1,
	}

	_, err := srv.ConfirmBuy(context.Background(), testChatID, pending)
	assert.ErrorIs(t, err, model.ErrInsufficientBudget)
	assert.Empty(t, repo.holdings)
}

func TestConfirmBuy_AtomicOnBudgetWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	repo.budgetUpsertErr = errors.New("connection reset")

	pending := model.PendingBuy{
		InstrumentID:   1,
		InstrumentName: "AAA",
		Price:          decimal.NewFromInt(100),
		Quantity:       3,
	}

	_, err := srv.ConfirmBuy(context.Background(), testChatID, pending)
	require.Error(t, err)

	// a failed budget write must not leave an orphaned lot behind
	assert.Empty(t, repo.holdings)
	assert.True(t, repo.budgets[testUserID].UsedAmount.IsZero())
}

func TestCalculateStrategy_AutoSell(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	srv := newTestService(repo, cache, &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	repo.instruments = []model.Instrument{
		testInstrument(1, "AAA", 110, 100),
	}
	repo.holdings = []model.Holding{{
		HoldingID:    1,
		UserID:       testUserID,
		InstrumentID: 1,
		BuyPrice:     decimal.NewFromInt(100),
		Quantity:     2,
		BuyDate:      testNow.AddDate(0, 0, -100),
		Active:       true,
	}}

	result, err := srv.CalculateStrategy(context.Background(), testChatID)
	require.NoError(t, err)

	require.True(t, result.SellExecuted)
	assert.True(t, result.SellProfit.Equal(decimal.NewFromInt(20)))

	require.NotNil(t, result.SellAllocation)
	assert.Equal(t, model.TaxShortTerm, result.SellAllocation.TaxType)
	assert.True(t, result.SellAllocation.ReinvestmentAmount.Equal(decimal.NewFromInt(16)))

	// the lot is closed and the reinvestment portion is booked into the budget
	assert.False(t, repo.holdings[0].Active)
	assert.True(t, repo.holdings[0].SellPrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, repo.budgets[testUserID].ReinvestedProfit.Equal(decimal.NewFromInt(16)))
	assert.Equal(t, 1, cache.flushed)

	// the held instrument is not offered for buying again
	assert.Nil(t, result.Decision.Buy)

	// the ranking refresh persisted today's rows
	require.Len(t, repo.rankings, 1)
	assert.Equal(t, 1, repo.rankings[0].Rank)
}

func TestCalculateStrategy_SellAtomicOnBudgetWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	repo.instruments = []model.Instrument{
		testInstrument(1, "AAA", 110, 100),
	}
	repo.holdings = []model.Holding{{
		HoldingID:    1,
		UserID:       testUserID,
		InstrumentID: 1,
		BuyPrice:     decimal.NewFromInt(100),
		Quantity:     2,
		BuyDate:      testNow.AddDate(0, 0, -100),
		Active:       true,
	}}
	repo.budgetUpsertErr = errors.New("connection reset")

	_, err := srv.CalculateStrategy(context.Background(), testChatID)
	require.Error(t, err)

	// the lot stays open and no reinvestment is booked when the write fails
	assert.True(t, repo.holdings[0].Active)
	assert.True(t, repo.budgets[testUserID].ReinvestedProfit.IsZero())
}

func TestRefreshRanking_SameDayRunsReplace(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	repo.instruments = []model.Instrument{
		testInstrument(1, "AAA", 90, 100),
	}

	_, err := srv.RefreshRanking(context.Background())
	require.NoError(t, err)

	_, err = srv.RefreshRanking(context.Background())
	require.NoError(t, err)

	// the persisted key is the calendar date, never the wall-clock instant
	assert.Equal(t, time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC), repo.rankingDt)
	require.Len(t, repo.rankings, 1)
}

func TestCalculateStrategy_BuyOnly(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	repo.instruments = []model.Instrument{
		testInstrument(1, "AAA", 90, 100),
		testInstrument(2, "BBB", 95, 100),
	}

	result, err := srv.CalculateStrategy(context.Background(), testChatID)
	require.NoError(t, err)

	assert.False(t, result.SellExecuted)
	require.NotNil(t, result.Decision.Buy)
	require.Len(t, result.Decision.Buy.Options, 2)
	assert.Equal(t, "AAA", result.Decision.Buy.Options[0].Instrument.Name)
	// quantity derives from the daily amount: floor(1000/90) = 11
	assert.Equal(t, 11, result.Decision.Buy.Options[0].Quantity)
}

func TestCalculateStrategy_NoInstruments(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})
	configuredBudget(t, repo, 50000)

	_, err := srv.CalculateStrategy(context.Background(), testChatID)
	assert.ErrorIs(t, err, service.ErrNoInstruments)
}

func TestCalculateStrategy_BudgetNotConfigured(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	_, err := srv.CalculateStrategy(context.Background(), testChatID)
	assert.ErrorIs(t, err, service.ErrBudgetNotConfigured)
}

func TestFillQuotesCache_FiltersInactive(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	quotesApi := &fakeQuotesApi{quotes: []feedModel.QuoteInfo{
		{Name: "AAA", Price: decimal.NewFromInt(100), Dma: decimal.NewFromInt(95), Active: true},
		{Name: "BBB", Price: decimal.NewFromInt(50), Dma: decimal.NewFromInt(60), Active: false},
	}}
	srv := newTestService(repo, cache, quotesApi)

	require.NoError(t, srv.FillQuotesCache(context.Background()))

	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "AAA", repo.upserted[0].Name)
	require.Len(t, cache.quotes, 1)
	assert.Equal(t, "AAA", cache.quotes[0].Name)
}

func TestGetInstrumentInfo(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	srv := newTestService(repo, cache, &fakeQuotesApi{})

	repo.instruments = []model.Instrument{testInstrument(1, "AAA", 100, 95)}

	// fresher cached quote overrides the stored row
	cache.quoteByName["AAA"] = feedModel.QuoteInfo{
		Name: "AAA", Price: decimal.NewFromInt(105), Dma: decimal.NewFromInt(96), Active: true,
	}

	instrument, err := srv.GetInstrumentInfo(context.Background(), "AAA")
	require.NoError(t, err)
	assert.True(t, instrument.Cmp.Equal(decimal.NewFromInt(105)))

	_, err = srv.GetInstrumentInfo(context.Background(), "ZZZ")
	assert.ErrorIs(t, err, service.ErrNotFound)

	cache.quoteByName["AAA"] = feedModel.QuoteInfo{Name: "AAA", Active: false}
	_, err = srv.GetInstrumentInfo(context.Background(), "AAA")
	assert.ErrorIs(t, err, service.ErrInstrumentNotActive)
}

func TestComputeSummary(t *testing.T) {
	buy := testNow.AddDate(0, 0, -400)
	shortSell := buy.AddDate(0, 0, 100)
	longSell := buy.AddDate(0, 0, 396)

	holdings := []model.Holding{
		{ // active lot
			InstrumentID: 1,
			BuyPrice:     decimal.NewFromInt(100),
			Quantity:     2,
			BuyDate:      buy,
			Active:       true,
		},
		{ // short-term realized: profit 1000, tax 150
			InstrumentID: 2,
			BuyPrice:     decimal.NewFromInt(100),
			Quantity:     10,
			BuyDate:      buy,
			SellPrice:    decimal.NewFromInt(200),
			SellDate:     shortSell,
		},
		{ // long-term realized: profit 1000, tax 125
			InstrumentID: 3,
			BuyPrice:     decimal.NewFromInt(100),
			Quantity:     10,
			BuyDate:      buy,
			SellPrice:    decimal.NewFromInt(200),
			SellDate:     longSell,
		},
		{ // realized loss: no tax bucket
			InstrumentID: 4,
			BuyPrice:     decimal.NewFromInt(100),
			Quantity:     1,
			BuyDate:      buy,
			SellPrice:    decimal.NewFromInt(90),
			SellDate:     shortSell,
		},
	}

	prices := map[int64]decimal.Decimal{1: decimal.NewFromInt(110)}

	summary := computeSummary(holdings, prices)

	assert.Equal(t, 1, summary.ActiveLots)
	assert.True(t, summary.TotalInvestment.Equal(decimal.NewFromInt(200)))
	assert.True(t, summary.CurrentValue.Equal(decimal.NewFromInt(220)))
	assert.True(t, summary.UnrealizedPnL.Equal(decimal.NewFromInt(20)))
	assert.True(t, summary.UnrealizedPnLPct.Equal(decimal.NewFromInt(10)))

	assert.True(t, summary.RealizedPnL.Equal(decimal.NewFromInt(1990)))
	assert.True(t, summary.ShortTermTax.Equal(decimal.NewFromInt(150)))
	assert.True(t, summary.LongTermTax.Equal(decimal.NewFromInt(125)))
	assert.True(t, summary.TotalTax.Equal(decimal.NewFromInt(275)))
	assert.True(t, summary.NetProfit.Equal(decimal.NewFromInt(1715)))
}

func TestMaterializeTransactions(t *testing.T) {
	buy := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	sell := buy.AddDate(0, 0, 30)

	holdings := []model.Holding{
		{
			InstrumentName: "AAA",
			BuyPrice:       decimal.NewFromInt(100),
			Quantity:       2,
			BuyDate:        buy,
			Active:         true,
		},
		{
			InstrumentName: "BBB",
			BuyPrice:       decimal.NewFromInt(50),
			Quantity:       4,
			BuyDate:        buy.AddDate(0, 0, 10),
			SellPrice:      decimal.NewFromInt(60),
			SellDate:       sell,
		},
	}

	transactions := materializeTransactions(holdings)
	require.Len(t, transactions, 3)

	// newest first: BBB sell, BBB buy, AAA buy
	assert.Equal(t, model.TransactionSell, transactions[0].Type)
	assert.Equal(t, "BBB", transactions[0].InstrumentName)
	assert.True(t, transactions[0].Profit.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, model.TransactionBuy, transactions[1].Type)
	assert.Equal(t, "BBB", transactions[1].InstrumentName)
	assert.Equal(t, model.TransactionBuy, transactions[2].Type)
	assert.Equal(t, "AAA", transactions[2].InstrumentName)
}

func TestBuildReportData_WithoutBudget(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	report, err := srv.buildReportData(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Nil(t, report.Budget)
}

func TestBuildReportData_PropagatesBudgetReadError(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

	readErr := errors.New("connection reset")
	repo.budgetGetErr = readErr

	_, err := srv.buildReportData(context.Background(), testChatID)
	assert.ErrorIs(t, err, readErr)
}

func TestImportPrices(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	srv := newTestService(repo, cache, &fakeQuotesApi{})

	csvData := strings.Join([]string{
		"Ticker,Market Price,200DMA",
		"AAA,101.5,100",
		"BBB,55,60.25",
	}, "\n")

	imported, err := srv.ImportPrices(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, imported)
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, "AAA", repo.upserted[0].Name)
	assert.True(t, repo.upserted[0].Price.Equal(decimal.NewFromFloat(101.5)))
	assert.True(t, repo.upserted[0].Active)
	require.Len(t, cache.quotes, 2)
}

func TestImportPrices_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{
			name: "missing dma column",
			csv:  "name,cmp\nAAA,100",
		},
		{
			name: "bad price value",
			csv:  "name,cmp,dma\nAAA,abc,100",
		},
		{
			name: "empty instrument name",
			csv:  "name,cmp,dma\n ,100,100",
		},
		{
			name: "no data rows",
			csv:  "name,cmp,dma",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			srv := newTestService(repo, newFakeCache(), &fakeQuotesApi{})

			_, err := srv.ImportPrices(context.Background(), strings.NewReader(tt.csv))
			assert.Error(t, err)
			assert.Empty(t, repo.upserted, "a failed import must not persist anything")
		})
	}
}

func TestImportPrices_Cancelled(t *testing.T) {
	srv := newTestService(newFakeRepo(), newFakeCache(), &fakeQuotesApi{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := srv.ImportPrices(ctx, strings.NewReader("name,cmp,dma\nAAA,100,100"))
	assert.ErrorIs(t, err, context.Canceled)
}
