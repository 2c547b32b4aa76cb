package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/avoronin/dma_advisor_bot/internal/model/feedModel"
	"github.com/avoronin/dma_advisor_bot/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("error not found in cache")

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func quoteKey(name string) string {
	return "quote:" + name
}

func portfolioSummaryKey(userID int64) string {
	return fmt.Sprintf("portfolio_summary:%d", userID)
}

func (r *RedisCache) SetQuotes(ctx context.Context, quotes []feedModel.QuoteInfo) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetQuotes start", slog.String("rqID", rqID))

	pipe := r.redis.Pipeline()
	for _, quote := range quotes {
		quoteJson, err := json.Marshal(quote)
		if err != nil {
			slog.Error(
				"can't marshal quote in SetQuotes",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("quote", quote),
			)
			return errors.New("can't marshal quote")
		}

		pipe.Set(ctx, quoteKey(quote.Name), quoteJson, r.cfg.Cache.QuotesExpiration)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetQuotes completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetQuote(ctx context.Context, name string) (feedModel.QuoteInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("name", name))

	res, err := r.redis.Get(ctx, quoteKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return feedModel.QuoteInfo{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return feedModel.QuoteInfo{}, err
	}

	quote := feedModel.QuoteInfo{}
	err = json.Unmarshal([]byte(res), &quote)
	if err != nil {
		slog.Error("can't unmarshal quote", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return feedModel.QuoteInfo{}, err
	}

	slog.Debug("GetQuote completed", slog.String("rqID", rqID))

	return quote, nil
}

func (r *RedisCache) SetPortfolioSummary(ctx context.Context, userID int64, summary model.PortfolioSummary) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetPortfolioSummary start", slog.String("rqID", rqID), slog.Int64("userID", userID))

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		slog.Error("can't marshal summary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	err = r.redis.Set(ctx, portfolioSummaryKey(userID), summaryJson, r.cfg.Cache.PortfolioExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetPortfolioSummary completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetPortfolioSummary(ctx context.Context, userID int64) (model.PortfolioSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetPortfolioSummary start", slog.String("rqID", rqID), slog.Int64("userID", userID))

	res, err := r.redis.Get(ctx, portfolioSummaryKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.PortfolioSummary{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.PortfolioSummary{}, err
	}

	summary := model.PortfolioSummary{}
	err = json.Unmarshal([]byte(res), &summary)
	if err != nil {
		slog.Error("can't unmarshal summary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.PortfolioSummary{}, err
	}

	slog.Debug("GetPortfolioSummary completed", slog.String("rqID", rqID))

	return summary, nil
}

// FlushPortfolio drops the cached summary after any financial mutation so the
// next read recomputes from the store.
func (r *RedisCache) FlushPortfolio(ctx context.Context, userID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("FlushPortfolio start", slog.String("rqID", rqID), slog.Int64("userID", userID))

	err := r.redis.Del(ctx, portfolioSummaryKey(userID)).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("FlushPortfolio completed", slog.String("rqID", rqID))

	return nil
}
