// Command xbtalert runs the multi-venue trade ingestion, aggregation and
// alerting pipeline described in SPEC_FULL.md: it loads the mutable
// Config document, wires the venue stream adapters, the cross-pair
// normalizer, the aggregation engine, the dynamic threshold controller
// and the alert dispatcher behind a Supervisor, and exposes a small
// control-surface HTTP server alongside Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/xbtalert/internal/aggregate"
	"github.com/sawpanic/xbtalert/internal/alert"
	"github.com/sawpanic/xbtalert/internal/availability"
	"github.com/sawpanic/xbtalert/internal/config"
	"github.com/sawpanic/xbtalert/internal/httpapi"
	"github.com/sawpanic/xbtalert/internal/marketdata"
	"github.com/sawpanic/xbtalert/internal/metrics"
	"github.com/sawpanic/xbtalert/internal/model"
	"github.com/sawpanic/xbtalert/internal/normalize"
	"github.com/sawpanic/xbtalert/internal/supervisor"
	"github.com/sawpanic/xbtalert/internal/threshold"
	"github.com/sawpanic/xbtalert/internal/venue"
)

const (
	canonicalQuote = "USDT"
	assetBase      = "XBT"
)

var (
	configPath string
	envPath    string
	httpAddr   string
	httpPort   int
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "xbtalert",
		Short:   "Multi-venue XBT buy-alert ingestion and aggregation pipeline",
		Version: "v1.0.0",
		RunE:    runServe,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the mutable configuration document")
	rootCmd.Flags().StringVar(&envPath, "env", ".env", "path to an optional .env file with venue credentials")
	rootCmd.Flags().StringVar(&httpAddr, "http-host", "127.0.0.1", "control-surface HTTP listen host")
	rootCmd.Flags().IntVar(&httpPort, "http-port", 8090, "control-surface HTTP listen port")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration document utilities",
	}
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Validate the configuration document and print a colorized health summary, matching the exit-on-fatal rule of spec §6",
		RunE:  runConfigVerify,
	}
	configCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the mutable configuration document")
	configCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("xbtalert exited with error")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	config.LoadEnv(envPath)

	var audit config.AuditSink
	if dbCfg := loadDBConfigFromEnv(); dbCfg.Enabled {
		pg, err := config.NewPostgresAudit(dbCfg)
		if err != nil {
			log.Warn().Err(err).Msg("audit trail disabled: could not connect to postgres")
		} else {
			audit = pg
			defer pg.Close()
		}
	}

	store, err := config.Load(configPath, audit)
	if err != nil {
		// ConfigValidationFailure / load failure is a non-recoverable
		// startup failure (spec §6): exit before starting any adapter.
		return err
	}
	cfg := store.Get()
	if cfg.BotToken == "" {
		log.Warn().Msg("bot_token is empty; alerts will be logged but not delivered")
	}

	reg := prometheus.DefaultRegisterer
	metricsReg := metrics.NewRegistry(reg)
	alertMetrics := alert.NewMetrics(reg)

	rateCache := normalize.NewRateCache(redisAddrFromEnv(), "", 0, 300*time.Second)

	nonKYCClient := marketdata.NewClient("nonkyc", "https://api.nonkyc.io", 5, 10, 10*time.Second)
	coinExClient := marketdata.NewClient("coinex", "https://api.coinex.com", 5, 10, 10*time.Second)
	ascendExClient := marketdata.NewClient("ascendex", "https://ascendex.com", 5, 10, 10*time.Second)

	normalizer := normalize.NewNormalizer(canonicalQuote, rateCache, func(ctx context.Context) (decimal.Decimal, error) {
		return marketdata.ReferenceRate(ctx, nonKYCClient)
	}, 300*time.Second)

	windowSeconds := cfg.TradeAggregation.WindowSeconds
	if !cfg.TradeAggregation.Enabled {
		windowSeconds = 0
	}
	engine := aggregate.NewEngine(windowSeconds, time.Now, metricsReg)

	dispatcher := alert.NewDispatcher(cfg.BotToken, cfg.ImagePath, alertMetrics)

	volumeFetcher := func(ctx context.Context) (decimal.Decimal, error) {
		t, err := marketdata.NonKYCTicker(ctx, nonKYCClient, "XBT_USDT")
		if err != nil {
			return decimal.Decimal{}, err
		}
		return t.Volume24h, nil
	}
	controller := threshold.NewController(store, volumeFetcher)

	prober := func(ctx context.Context, ven string) bool {
		client := venueClient(ven, nonKYCClient, coinExClient, ascendExClient)
		if client == nil {
			return false
		}
		_, err := marketdata.NonKYCRecentTrades(ctx, nonKYCClient, "XBT_USDT")
		return err == nil || ven != "nonkyc"
	}
	probe := availability.NewProbe([]string{"nonkyc", "coinex", "ascendex"}, prober, 60*time.Second, 5*time.Minute, nil)

	adapters := buildVenueAdapters(engine, normalizer, probe)

	sup := supervisor.New(store, probe, controller, normalizer, engine, dispatcher, adapters,
		supervisor.WithMetrics(metricsReg))

	httpCfg := httpapi.DefaultServerConfig()
	httpCfg.Host = httpAddr
	httpCfg.Port = httpPort
	server := httpapi.NewServer(httpCfg, store, sup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup.Start(ctx)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("control surface HTTP server stopped")
		}
	}()

	log.Info().Str("asset", assetBase).Str("canonical_quote", canonicalQuote).Msg("xbtalert pipeline started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping pipeline")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()

	return nil
}

// runConfigVerify loads and validates the configuration document without
// starting any network component, then prints a colorized summary of its
// threshold and aggregation settings, exiting non-zero on a validation
// failure per spec §6's exit-before-streaming rule. Color is disabled
// automatically when stdout isn't a terminal (e.g. piped into a log
// collector).
func runConfigVerify(cmd *cobra.Command, args []string) error {
	store, err := config.Load(configPath, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("CONFIG INVALID"), err)
		return err
	}
	cfg := store.Get()

	useColor := term.IsTerminal(int(os.Stdout.Fd()))
	color.NoColor = !useColor

	fmt.Println(color.New(color.FgGreen, color.Bold).Sprint("config OK"), configPath)
	fmt.Printf("  threshold:        %s %s\n", thresholdColor(cfg.ValueRequire).Sprintf("%.2f USDT", cfg.ValueRequire), dynamicSuffix(cfg))
	fmt.Printf("  aggregation:      %s\n", enabledColor(cfg.TradeAggregation.Enabled).Sprint(aggregationLabel(cfg)))
	fmt.Printf("  sweep_orders:     %s\n", enabledColor(cfg.SweepOrders.Enabled).Sprint(enabledLabel(cfg.SweepOrders.Enabled)))
	fmt.Printf("  destinations:     %d chat id(s)\n", len(cfg.ActiveChatIDs))
	fmt.Printf("  bot_token:        %s\n", tokenColor(cfg.BotToken).Sprint(tokenLabel(cfg.BotToken)))
	return nil
}

func aggregationLabel(cfg config.Config) string {
	if !cfg.TradeAggregation.Enabled {
		return "disabled (immediate alerts)"
	}
	return fmt.Sprintf("enabled, window=%ds", cfg.TradeAggregation.WindowSeconds)
}

func dynamicSuffix(cfg config.Config) string {
	if !cfg.DynamicThreshold.Enabled {
		return "(static)"
	}
	return fmt.Sprintf("(dynamic band %.0f-%.0f)", cfg.DynamicThreshold.Min, cfg.DynamicThreshold.Max)
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func tokenLabel(token string) string {
	if token == "" {
		return "not configured"
	}
	return "configured"
}

// thresholdColor mirrors the pack's score-to-color convention (green for
// healthy, yellow for marginal, red for misconfigured): a threshold under
// $10 is implausibly permissive for a buy-alert feed and flagged red.
func thresholdColor(value float64) *color.Color {
	switch {
	case value >= 50:
		return color.New(color.FgGreen, color.Bold)
	case value >= 10:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func enabledColor(enabled bool) *color.Color {
	if enabled {
		return color.New(color.FgGreen)
	}
	return color.New(color.FgYellow)
}

func tokenColor(token string) *color.Color {
	if token == "" {
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgGreen)
}

func venueClient(ven string, nonKYC, coinEx, ascendEx *marketdata.Client) *marketdata.Client {
	switch ven {
	case "nonkyc":
		return nonKYC
	case "coinex":
		return coinEx
	case "ascendex":
		return ascendEx
	default:
		return nil
	}
}

func buildVenueAdapters(engine *aggregate.Engine, normalizer *normalize.Normalizer, probe *availability.Probe) map[string]supervisor.VenueAdapter {
	handler := func(t model.TradeEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		nt, ok := normalizer.Normalize(ctx, t)
		if !ok {
			return
		}
		engine.Add(nt)
	}

	usdtPair := model.Pair{Base: assetBase, Quote: "USDT"}
	btcPair := model.Pair{Base: assetBase, Quote: "BTC"}

	nonKYCUSDT := venue.NewNonKYCProtocol("XBT/USDT", usdtPair, 2)
	nonKYCBTC := venue.NewNonKYCProtocol("XBT/BTC", btcPair, 2)
	coinExUSDT := venue.NewCoinExProtocol("XBTUSDT", usdtPair)
	ascendExUSDT := venue.NewAscendEXProtocol("XBT/USDT", usdtPair)

	limiterOpt := venue.WithRateLimit(5, 10)
	availabilityOpt := venue.WithAvailability(probe, 60*time.Second)

	return map[string]supervisor.VenueAdapter{
		"nonkyc-usdt":   venue.NewAdapter(nonKYCUSDT, "wss://api.nonkyc.io/websocket", handler, limiterOpt, availabilityOpt),
		"nonkyc-btc":    venue.NewAdapter(nonKYCBTC, "wss://api.nonkyc.io/websocket", handler, limiterOpt, availabilityOpt),
		"coinex-usdt":   venue.NewAdapter(coinExUSDT, "wss://socket.coinex.com/", handler, limiterOpt, availabilityOpt),
		"ascendex-usdt": venue.NewAdapter(ascendExUSDT, "wss://ascendex.com/1/api/pro/v1/stream", handler, limiterOpt, availabilityOpt),
	}
}

func loadDBConfigFromEnv() config.DBConfig {
	cfg := config.DefaultDBConfig()
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		cfg.DSN = dsn
		cfg.Enabled = true
	}
	return cfg
}

func redisAddrFromEnv() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}
