package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL"`
	Postgres          Postgres
	Telegram          Telegram
	Redis             Redis
	API               API
	Cache             Cache
	Jobs              Jobs
	Strategy          Strategy
	GoogleDrive       GoogleDrive
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION"`
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME"`
	MigrationDir    string `env:"PG_MIGRATION_DIR"`
}

type Telegram struct {
	Token            string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout       time.Duration `env:"TELEGRAM_UPD_TIMEOUT"`
	FileLimitInBytes int           `env:"TELEGRAM_FILE_LIMIT_IN_BYTES"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug     bool          `env:"API_DEBUG"`
	Timeout   time.Duration `env:"API_TIMEOUT"`
	QuotesApi QuotesApi
}

type QuotesApi struct {
	Url string `env:"QUOTES_API_URL"`
}

type Cache struct {
	QuotesExpiration    time.Duration `env:"CACHE_QUOTES_EXPIRATION"`
	PortfolioExpiration time.Duration `env:"CACHE_PORTFOLIO_EXPIRATION"`
}

type Jobs struct {
	FillQuotesCacheInterval time.Duration `env:"FILL_QUOTES_CACHE_JOB_INTERVAL"`
	RefreshRankingCrontab   string        `env:"REFRESH_RANKING_JOB_CRONTAB" envDefault:"30 9 * * 1-5"`
}

// Strategy holds decision-policy knobs. Defaults mirror the documented policy:
// top 5 buy options, take profit above 6%, average down below -2.5%.
type Strategy struct {
	TopOptions         int     `env:"STRATEGY_TOP_OPTIONS" envDefault:"5"`
	ProfitThresholdPct float64 `env:"STRATEGY_PROFIT_THRESHOLD_PCT" envDefault:"6.0"`
	AveragingLossPct   float64 `env:"STRATEGY_AVERAGING_LOSS_PCT" envDefault:"-2.5"`
	DefaultQuantity    int     `env:"STRATEGY_DEFAULT_QUANTITY" envDefault:"1"`
}

type GoogleDrive struct {
	CredentialsFile string `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
