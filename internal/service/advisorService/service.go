// Package advisorService orchestrates the decision engine: it loads
// snapshots from the repository, runs the pure strategy code, and persists
// whatever the policy decided. All financial mutations go through here.
package advisorService

import (
	"context"
	"io"
	"time"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/avoronin/dma_advisor_bot/internal/strategy"
	"github.com/shopspring/decimal"
)

type QuotesApi interface {
	GetQuotes(ctx context.Context) ([]feedModel.QuoteInfo, error)
	GetQuote(ctx context.Context, name string) (feedModel.QuoteInfo, error)
}

type Cache interface {
	SetQuotes(ctx context.Context, quotes []feedModel.QuoteInfo) error
	GetQuote(ctx context.Context, name string) (feedModel.QuoteInfo, error)
	GetPortfolioSummary(ctx context.Context, userID int64) (model.PortfolioSummary, error)
	SetPortfolioSummary(ctx context.Context, userID int64, summary model.PortfolioSummary) error
	FlushPortfolio(ctx context.Context, userID int64) error
}

type Repository interface {
	RegUser(ctx context.Context, chatID int64) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (userID int64, err error)
	UpsertInstruments(ctx context.Context, quotes []feedModel.QuoteInfo) error
	GetInstruments(ctx context.Context) ([]model.Instrument, error)
	GetInstrumentByName(ctx context.Context, name string) (model.Instrument, error)
	ReplaceRankings(ctx context.Context, dt time.Time, ranked []model.RankedInstrument) error
	GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error)
	GetActiveHoldings(ctx context.Context, userID int64) ([]model.Holding, error)
	ExecuteBuy(ctx context.Context, holding model.Holding, budget model.Budget) (holdingID int64, err error)
	ExecuteSell(ctx context.Context, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time, budget model.Budget) error
	CloseHolding(ctx context.Context, holdingID int64, sellPrice decimal.Decimal, sellDate time.Time) error
	GetBudget(ctx context.Context, userID int64) (model.Budget, error)
	UpsertBudget(ctx context.Context, budget model.Budget) error
	DeleteBudget(ctx context.Context, userID int64) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type AdvisorService struct {
	cfg          *config.Config
	strategyCfg  strategy.Config
	repo         Repository
	cache        Cache
	quotesApi    QuotesApi
	reportGen    ReportGenerator
	cloudStorage CloudStorage
	now          func() time.Time
}

func New(
	cfg *config.Config,
	repo Repository,
	cache Cache,
	quotesApi QuotesApi,
	reportGen ReportGenerator,
	cloudStorage CloudStorage,
) *AdvisorService {
	return &AdvisorService{
		cfg: cfg,
		strategyCfg: strategy.Config{
			TopOptions:         cfg.Strategy.TopOptions,
			ProfitThresholdPct: decimal.NewFromFloat(cfg.Strategy.ProfitThresholdPct),
			AveragingLossPct:   decimal.NewFromFloat(cfg.Strategy.AveragingLossPct),
			DefaultQuantity:    cfg.Strategy.DefaultQuantity,
		},
		repo:         repo,
		cache:        cache,
		quotesApi:    quotesApi,
		reportGen:    reportGen,
		cloudStorage: cloudStorage,
		now:          time.Now,
	}
}

func (s *AdvisorService) RegUser(ctx context.Context, chatID int64) error {
	_, err := s.repo.RegUser(ctx, chatID)
	return err
}
