// Package server exposes the analytics engine and the market-data providers
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/cache"
	"github.com/OMCHOKSI108/faststock-go/chain"
	"github.com/OMCHOKSI108/faststock-go/metrics"
)

// IndiaProvider serves NSE-listed quotes
type IndiaProvider interface {
	EquityQuote(ctx context.Context, symbol string) (*faststock.Quote, error)
	IndexQuote(ctx context.Context, symbol string) (*faststock.Quote, error)
}

// GlobalProvider serves non-Indian equities and forex pairs
type GlobalProvider interface {
	Quote(ctx context.Context, symbol string) (*faststock.Quote, error)
	Historical(ctx context.Context, symbol, rng, interval string) ([]faststock.Candle, error)
	PairQuote(ctx context.Context, base, quote string) (*faststock.Quote, error)
}

// CryptoProvider serves spot crypto quotes and candles
type CryptoProvider interface {
	Ticker24h(ctx context.Context, symbol string) (*faststock.Quote, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]faststock.Candle, error)
}

// OptionsBackend is the poller surface the API drives: cached snapshots,
// the polling set and one-shot fetch jobs.
type OptionsBackend interface {
	Latest(symbol string, expiry time.Time) (*chain.Snapshot, error)
	Subscribe(symbol string, expiry time.Time) error
	Unsubscribe(symbol string, expiry time.Time) error
	Subscriptions() []cache.Subscription
	FetchNow(ctx context.Context, symbol string, expiry time.Time) (cache.Job, error)
	Job(id string) (cache.Job, error)
	Jobs() []cache.Job
}

// ExpirySource lists the tradable expiries for an underlying
type ExpirySource interface {
	Expiries(ctx context.Context, symbol string) ([]time.Time, error)
}

// SnapshotReader reads persisted snapshots; it backs analytics when the
// in-memory cache misses (fresh process, unpolled expiry).
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, symbol string) (*chain.Snapshot, error)
	LatestSnapshotForExpiry(ctx context.Context, symbol string, expiry time.Time) (*chain.Snapshot, error)
}

// Config carries the server's dependencies. Nil providers disable their
// routes with 503 rather than panicking, so partial deployments stay up.
type Config struct {
	India    IndiaProvider
	Global   GlobalProvider
	Crypto   CryptoProvider
	Chains   OptionsBackend
	Expiries ExpirySource
	Store    SnapshotReader
	Quotes   *cache.QuoteCache

	Metrics       *metrics.ProviderCollector
	StreamMetrics *metrics.StreamCollector
	LimiterStats  func() map[string]interface{}

	// APIToken guards mutating and analytics routes when non-empty
	APIToken string
	Logger   zerolog.Logger
}

// Server routes HTTP requests to the providers and the analytics engine
type Server struct {
	cfg    Config
	log    zerolog.Logger
	router *gin.Engine
}

// New builds the server and its routing table
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, log: cfg.Logger.With().Str("component", "server").Logger()}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(s.requestLogger(), gin.Recovery(), corsMiddleware())

	router.GET("/", s.banner)
	router.GET("/health", s.health)
	router.GET("/metrics", s.metricsHandler)

	market := router.Group("/market")
	market.GET("/price/index/:index", s.indexPrice)
	market.GET("/price/index", s.indexPrice)
	market.GET("/price/stock/:symbol", s.stockPrice)
	market.GET("/price/stock", s.stockPrice)

	stocks := router.Group("/stocks")
	stocks.GET("/quote/:region/:symbol", s.stockQuote)
	stocks.GET("/historical/:region/:symbol", s.stockHistorical)

	crypto := router.Group("/crypto")
	crypto.GET("/quote/:symbol", s.cryptoQuote)
	crypto.GET("/historical/:symbol", s.cryptoHistorical)

	forex := router.Group("/forex")
	forex.GET("/quote", s.forexQuote)
	forex.GET("/historical", s.forexHistorical)

	options := router.Group("/options")
	options.GET("/expiries", s.optionExpiries)
	options.GET("/latest", s.optionLatest)
	options.GET("/jobs", s.listJobs)
	options.GET("/jobs/:id", s.jobStatus)
	options.GET("/subscriptions", s.listSubscriptions)

	protected := router.Group("/")
	if s.cfg.APIToken != "" {
		protected.Use(s.authenticate)
	}
	protected.POST("/options/fetch", s.fetchChain)
	protected.POST("/options/fetch/expiry", s.fetchChainExpiry)
	protected.POST("/options/subscriptions", s.subscribe)
	protected.DELETE("/options/subscriptions", s.unsubscribe)

	analytics := protected.Group("/analytics")
	analytics.GET("/pcr", s.analyticsPCR)
	analytics.GET("/top-oi", s.analyticsTopOI)
	analytics.GET("/max-pain", s.analyticsMaxPain)
	analytics.GET("/summary", s.analyticsSummary)

	s.router = router
}

// Router exposes the gin engine for tests and custom http.Server wiring
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the listener fails
func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("http server listening")
	return s.router.Run(addr)
}

func (s *Server) banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "faststock",
		"endpoints": []string{
			"/health", "/metrics",
			"/market/price/index/:index", "/market/price/stock/:symbol",
			"/stocks/quote/:region/:symbol", "/stocks/historical/:region/:symbol",
			"/crypto/quote/:symbol", "/crypto/historical/:symbol",
			"/forex/quote", "/forex/historical",
			"/options/expiries", "/options/latest", "/options/fetch",
			"/options/fetch/expiry", "/options/jobs/:id", "/options/subscriptions",
			"/analytics/pcr", "/analytics/top-oi", "/analytics/max-pain", "/analytics/summary",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) metricsHandler(c *gin.Context) {
	out := gin.H{}
	if s.cfg.Metrics != nil {
		out["providers"] = s.cfg.Metrics.GetMetrics()
	}
	if s.cfg.StreamMetrics != nil {
		out["stream"] = s.cfg.StreamMetrics.GetMetrics()
	}
	if s.cfg.LimiterStats != nil {
		out["rate_limits"] = s.cfg.LimiterStats()
	}
	c.JSON(http.StatusOK, out)
}
