package commands

import (
	"github.com/spf13/cobra"

	"github.com/mwhitt/alphascreen/internal/backtest"
	"github.com/mwhitt/alphascreen/internal/broker"
	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/earnings"
	"github.com/mwhitt/alphascreen/internal/marketdata"
	"github.com/mwhitt/alphascreen/internal/notify"
	"github.com/mwhitt/alphascreen/internal/orchestrator"
	"github.com/mwhitt/alphascreen/internal/scoring"
	"github.com/mwhitt/alphascreen/internal/screening"
	"github.com/mwhitt/alphascreen/pkg/config"
	"github.com/mwhitt/alphascreen/pkg/database"
	"github.com/mwhitt/alphascreen/pkg/logger"
	"github.com/mwhitt/alphascreen/pkg/redis"
)

var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Equity screening, backtest and position management engine",
	Long: `screener runs factor-based stock screening, earnings beat detection,
historical backtests and live paper trading with trailing-stop exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(earningsCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(papertradeCmd)
	rootCmd.AddCommand(positionCmd)
	rootCmd.AddCommand(apiCmd)
}

// app bundles the wired components every command needs.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *database.DB
	redis    *redis.Client
	orch     *orchestrator.Orchestrator
	screens  *screening.Repository
	earnings *earnings.Repository
	runs     *backtest.Repository
	market   *marketdata.Client
	calendar *marketdata.CalendarScraper
	screener *screening.Screener
	detector *earnings.Detector
}

// newApp loads config and wires the full component graph.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		// The cache is a fallback, not a dependency. Run without it.
		log.WithError(err).Warn("Redis unavailable, quote fallback cache disabled")
		disabled := *cfg
		disabled.Redis.Enabled = false
		redisClient, _ = redis.New(&disabled)
	}
	cache := redis.NewCache(redisClient, "alphascreen")

	market := marketdata.NewClient(cfg, cache, log)
	calendar := marketdata.NewCalendarScraper(cfg, log)

	screenRepo := screening.NewRepository(db.Pool)
	earningsRepo := earnings.NewRepository(db.Pool)
	runRepo := backtest.NewRepository(db.Pool)

	scorer := scoring.NewScorer(log)
	screener := screening.NewScreener(screenRepo, scorer, log)
	detector := earnings.NewDetector(earningsRepo, screenRepo, cfg.Engine.MinEarningsSurprise, log)

	notifier := notify.NewLogNotifier(log)
	paperBroker := broker.NewPaperBroker(0, log)
	simulator := backtest.NewSimulator(runRepo, screenRepo, market, log)
	trader := backtest.NewPaperTrader(
		runRepo, screenRepo, market, nil, notifier,
		cfg.Engine.CutoffHour, cfg.Engine.CutoffMinute,
		0, log,
	)

	orch := orchestrator.New(
		screener, detector, simulator, trader,
		runRepo, screenRepo, market, paperBroker, log,
	)

	return &app{
		cfg:      cfg,
		logger:   log,
		db:       db,
		redis:    redisClient,
		orch:     orch,
		screens:  screenRepo,
		earnings: earningsRepo,
		runs:     runRepo,
		market:   market,
		calendar: calendar,
		screener: screener,
		detector: detector,
	}, nil
}

// close releases shared resources.
func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

var _ contracts.Notifier = (*notify.LogNotifier)(nil)
