package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/OMCHOKSI108/faststock-go/cache"
	"github.com/OMCHOKSI108/faststock-go/config"
	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
	"github.com/OMCHOKSI108/faststock-go/metrics"
	"github.com/OMCHOKSI108/faststock-go/middleware"
	"github.com/OMCHOKSI108/faststock-go/providers/binance"
	"github.com/OMCHOKSI108/faststock-go/providers/nse"
	"github.com/OMCHOKSI108/faststock-go/providers/yahoo"
	"github.com/OMCHOKSI108/faststock-go/server"
	"github.com/OMCHOKSI108/faststock-go/store"
	"github.com/OMCHOKSI108/faststock-go/stream"
	"github.com/OMCHOKSI108/faststock-go/utils"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Server.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if cfg.Server.Env == "development" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}

// providerClient builds an HTTP client with logging and per-provider metrics
func providerClient(base *utils.HTTPClientConfig, provider string, collector *metrics.ProviderCollector, logger zerolog.Logger) *http.Client {
	return utils.WithMiddleware(utils.NewHTTPClient(base),
		middleware.MetricsRoundTripper(provider, collector),
		middleware.LoggingRoundTripper(logger),
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg)

	providerMetrics := metrics.NewProviderCollector()
	streamMetrics := metrics.NewStreamCollector()
	httpLimiter := limiter.NewHTTPRateLimiter()

	nseHTTP := providerClient(utils.NSEConfig(), "nse", providerMetrics, logger)
	jar, _ := cookiejar.New(nil)
	nseHTTP.Jar = jar
	nseClient, err := nse.NewClient(
		nse.WithHTTPClient(nseHTTP),
		nse.WithRateLimiter(httpLimiter),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build nse client")
	}

	yahooClient := yahoo.NewClient(
		yahoo.WithHTTPClient(providerClient(utils.DefaultConfig(), "yahoo", providerMetrics, logger)),
		yahoo.WithRateLimiter(httpLimiter),
	)
	binanceClient := binance.NewClient(
		binance.WithHTTPClient(providerClient(utils.DefaultConfig(), "binance", providerMetrics, logger)),
		binance.WithRateLimiter(httpLimiter),
	)

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Store.DBPath).Msg("open store")
	}
	defer st.Close()

	quotes := cache.NewQuoteCache(cache.DefaultQuoteTTL, providerMetrics)
	jobs := cache.NewJobRegistry(0)

	poller, err := cache.NewPoller(cache.PollerConfig{
		Fetcher:           nseClient,
		Store:             st,
		Jobs:              jobs,
		Quotes:            quotes,
		Interval:          cfg.Poller.FetchInterval,
		SubscriptionsPath: cfg.Poller.SubscriptionsPath,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build poller")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("poller stopped")
		}
	}()

	if cfg.Stream.Enabled {
		consumer, err := stream.NewConsumer(stream.ConsumerConfig{
			BaseURL: cfg.Stream.URL,
			Symbols: cfg.Stream.Symbols,
			Sink:    quotes,
			Metrics: streamMetrics,
			Limiter: limiter.NewStreamLimiter(),
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("build stream consumer")
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("stream consumer stopped")
			}
		}()
	}

	// drop snapshots past retention once an hour
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pruned, err := st.PruneBefore(ctx, time.Now().Add(-cfg.Store.Retention))
				if err != nil {
					logger.Warn().Err(err).Msg("prune snapshots")
					continue
				}
				if pruned > 0 {
					logger.Info().Int64("snapshots", pruned).Msg("pruned old snapshots")
				}
			}
		}
	}()

	api := server.New(server.Config{
		India:         nseClient,
		Global:        yahooClient,
		Crypto:        binanceClient,
		Chains:        poller,
		Expiries:      nseClient,
		Store:         st,
		Quotes:        quotes,
		Metrics:       providerMetrics,
		StreamMetrics: streamMetrics,
		LimiterStats:  httpLimiter.GetStats,
		APIToken:      cfg.Server.APIToken,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("stopped")
}
