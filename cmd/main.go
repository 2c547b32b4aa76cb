package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/data"
	"github.com/avoronin/dma_advisor_bot/data/cache"
	"github.com/avoronin/dma_advisor_bot/data/repository"
	"github.com/avoronin/dma_advisor_bot/data/session"
	"github.com/avoronin/dma_advisor_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/avoronin/dma_advisor_bot/internal/externalApi/quotesApi"
	"github.com/avoronin/dma_advisor_bot/internal/reportGenerator/xslsxGenerator"
	"github.com/avoronin/dma_advisor_bot/internal/scheduler"
	"github.com/avoronin/dma_advisor_bot/internal/service/advisorService"
	"github.com/avoronin/dma_advisor_bot/internal/tgbot"
	"github.com/avoronin/dma_advisor_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := repository.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	quotesApiClient := quotesApi.New(cfg)

	reportGenerator := xslsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	advisorSrv := advisorService.New(cfg, pgRepo, redisCache, quotesApiClient, reportGenerator, googleCloudStorage)

	sched := scheduler.New()
	sched.NewIntervalJob("fill quotes cache", advisorSrv.FillQuotesCache, cfg.Jobs.FillQuotesCacheInterval, true)
	sched.NewCrontabJob("refresh ranking", advisorSrv.RefreshRankingJob, cfg.Jobs.RefreshRankingCrontab, false)
	sched.NewIntervalJob("cleanup old reports", googleCloudStorage.DeleteOldFiles, 24*time.Hour, false)
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(cfg, advisorSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
