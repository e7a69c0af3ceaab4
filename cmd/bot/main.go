package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid-bot-go/internal/bot"
	"grid-bot-go/internal/config"
	"grid-bot-go/internal/downloader"
	"grid-bot-go/internal/exchange"
	"grid-bot-go/internal/feed"
	"grid-bot-go/internal/logger"
	"grid-bot-go/internal/models"
	"grid-bot-go/internal/reporter"
	"grid-bot-go/internal/storage"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:           "grid-bot",
		Usage:          "grid trading bot with paper accounting and offline replay",
		DefaultCommand: "run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "path to the YAML config file"},
		},
		Commands: []*cli.Command{
			runCommand,
			downloadCommand,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "start the bot loop",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "db", Usage: "override storage path"},
		&cli.BoolFlag{Name: "offline", Usage: "use the synthetic price feed instead of the exchange"},
		&cli.StringFlag{Name: "scenario", Usage: "offline scenario: range, trend_up, trend_down, flash_crash"},
		&cli.BoolFlag{Name: "once", Usage: "consume the offline feed a single time instead of cycling"},
		&cli.Int64Flag{Name: "seed", Usage: "seed for the offline feed generator"},
		&cli.Float64Flag{Name: "interval", Usage: "override tick interval in seconds"},
		&cli.IntFlag{Name: "max-steps", Usage: "stop after this many ticks"},
		&cli.StringFlag{Name: "report", Usage: "write the run report as JSON to this path"},
		&cli.BoolFlag{Name: "reset", Usage: "clear persisted state before starting"},
	},
	Action: runBot,
}

func runBot(c *cli.Context) error {
	if err := godotenv.Load(); err == nil {
		logger.S().Info("loaded environment from .env")
	}

	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	logger.Init(cfg.Log)
	log := logger.S()
	defer log.Sync()

	repo, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer repo.Close()

	ex, err := buildExchange(cfg, log)
	if err != nil {
		return err
	}
	defer ex.Close()

	b, err := bot.New(cfg, ex, repo, log)
	if err != nil {
		return err
	}
	if c.Bool("reset") {
		if err := b.Reset(); err != nil {
			return err
		}
		log.Info("persisted state cleared")
	}

	rep, err := b.Run(c.Context)
	if err != nil {
		return err
	}

	reporter.Finalize(rep, configPath)
	reporter.Render(rep, log)
	if cfg.ReportPath != "" {
		if err := reporter.WriteJSON(rep, cfg.ReportPath); err != nil {
			return err
		}
		log.Infow("report written", "path", cfg.ReportPath)
	}
	return nil
}

// applyFlags lets CLI flags override the file config for ad-hoc runs.
func applyFlags(c *cli.Context, cfg *models.Config) {
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("offline") {
		cfg.Offline = c.Bool("offline")
	}
	if c.IsSet("scenario") {
		cfg.OfflineScenario = c.String("scenario")
		cfg.Offline = true
	}
	if c.IsSet("once") {
		cfg.OfflineOnce = c.Bool("once")
	}
	if c.IsSet("seed") {
		seed := c.Int64("seed")
		cfg.Seed = &seed
	}
	if c.IsSet("interval") {
		cfg.IntervalSeconds = c.Float64("interval")
	}
	if c.IsSet("max-steps") {
		cfg.MaxSteps = c.Int("max-steps")
	}
	if c.IsSet("report") {
		cfg.ReportPath = c.String("report")
	}
	if cfg.Offline {
		cfg.DryRun = true
	}
}

func buildExchange(cfg *models.Config, log *zap.SugaredLogger) (exchange.Exchange, error) {
	if cfg.Offline {
		f, err := feed.New(cfg)
		if err != nil {
			return nil, err
		}
		log.Infow("offline mode", "scenario", cfg.OfflineScenario, "prices", f.Len(), "once", cfg.OfflineOnce)
		return exchange.NewOfflineExchange(f), nil
	}

	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	if !cfg.DryRun && (apiKey == "" || secretKey == "") {
		return nil, errors.New("BINANCE_API_KEY and BINANCE_SECRET_KEY are required for live trading")
	}
	return exchange.NewLiveExchange(apiKey, secretKey, cfg.Exchange, cfg.Symbol, log)
}

var downloadCommand = &cli.Command{
	Name:  "download",
	Usage: "download 1m close prices into a CSV for offline replay",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "symbol", Required: true, Usage: "trading pair, e.g. BTCUSDT"},
		&cli.StringFlag{Name: "out", Value: "data/offline_prices.csv", Usage: "output CSV path"},
		&cli.StringFlag{Name: "start", Required: true, Usage: "start date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end", Usage: "end date (YYYY-MM-DD), defaults to now"},
	},
	Action: func(c *cli.Context) error {
		logger.Init(models.LogConfig{Level: "info", Output: "console"})
		log := logger.S()
		defer log.Sync()

		start, err := time.Parse("2006-01-02", c.String("start"))
		if err != nil {
			return fmt.Errorf("parse start date: %w", err)
		}
		end := time.Now().UTC()
		if c.IsSet("end") {
			end, err = time.Parse("2006-01-02", c.String("end"))
			if err != nil {
				return fmt.Errorf("parse end date: %w", err)
			}
		}

		d := downloader.New(log)
		return d.DownloadCloses(c.Context, c.String("symbol"), c.String("out"), start, end)
	},
}
