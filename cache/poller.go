package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

// DefaultFetchInterval is the default chain polling cadence
const DefaultFetchInterval = 60 * time.Second

// expiryKeyLayout keys subscriptions and snapshots by date only
const expiryKeyLayout = "2006-01-02"

// ChainFetcher fetches option chains from an upstream provider. The NSE
// client satisfies it.
type ChainFetcher interface {
	OptionChain(ctx context.Context, symbol string, expiry time.Time) (*chain.Snapshot, error)
	Expiries(ctx context.Context, symbol string) ([]time.Time, error)
}

// SnapshotStore persists fetched snapshots. The sqlite store satisfies it;
// a nil store keeps snapshots in memory only.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *chain.Snapshot) error
}

// Subscription is one symbol+expiry pair the poller keeps fresh
type Subscription struct {
	Symbol string `json:"symbol"`
	Expiry string `json:"expiry"` // YYYY-MM-DD
}

// PollerConfig configures a Poller
type PollerConfig struct {
	Fetcher ChainFetcher
	Store   SnapshotStore
	Jobs    *JobRegistry
	Quotes  *QuoteCache
	// Interval between fetch cycles; DefaultFetchInterval if <= 0
	Interval time.Duration
	// SubscriptionsPath persists subscriptions as JSON across restarts;
	// empty disables persistence
	SubscriptionsPath string
	Logger            zerolog.Logger
}

// Poller periodically refetches the option chains of its subscriptions,
// persists them and keeps the latest snapshot per subscription in memory
// for the analytics endpoints.
type Poller struct {
	fetcher  ChainFetcher
	store    SnapshotStore
	jobs     *JobRegistry
	quotes   *QuoteCache
	interval time.Duration
	subsPath string
	logger   zerolog.Logger

	mu     sync.RWMutex
	subs   map[string]Subscription
	latest map[string]*chain.Snapshot
}

// NewPoller creates a poller and loads persisted subscriptions if a
// subscriptions file exists
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("poller: %w: nil fetcher", faststock.ErrInvalidArgument)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFetchInterval
	}

	p := &Poller{
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		jobs:     cfg.Jobs,
		quotes:   cfg.Quotes,
		interval: cfg.Interval,
		subsPath: cfg.SubscriptionsPath,
		logger:   cfg.Logger.With().Str("component", "poller").Logger(),
		subs:     make(map[string]Subscription),
		latest:   make(map[string]*chain.Snapshot),
	}

	if err := p.loadSubscriptions(); err != nil {
		return nil, err
	}
	return p, nil
}

func subKey(symbol string, expiry time.Time) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + expiry.Format(expiryKeyLayout)
}

// Subscribe adds a symbol+expiry to the polling set and persists it
func (p *Poller) Subscribe(symbol string, expiry time.Time) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", faststock.ErrInvalidArgument)
	}

	p.mu.Lock()
	p.subs[subKey(symbol, expiry)] = Subscription{
		Symbol: symbol,
		Expiry: expiry.Format(expiryKeyLayout),
	}
	p.mu.Unlock()

	return p.saveSubscriptions()
}

// Unsubscribe removes a symbol+expiry from the polling set
func (p *Poller) Unsubscribe(symbol string, expiry time.Time) error {
	p.mu.Lock()
	delete(p.subs, subKey(symbol, expiry))
	p.mu.Unlock()

	return p.saveSubscriptions()
}

// Subscriptions returns the current polling set, sorted for stable output
func (p *Poller) Subscriptions() []Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Subscription, 0, len(p.subs))
	for _, sub := range p.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Expiry < out[j].Expiry
	})
	return out
}

// Latest returns the most recent in-memory snapshot for a subscription
func (p *Poller) Latest(symbol string, expiry time.Time) (*chain.Snapshot, error) {
	p.mu.RLock()
	snap, ok := p.latest[subKey(symbol, expiry)]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s %s: %w", symbol, expiry.Format(expiryKeyLayout), faststock.ErrNoData)
	}
	return snap, nil
}

// Run polls until ctx is cancelled. One failing subscription never stops
// the cycle.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// fetch once at startup so subscribers don't wait a full interval
	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	for _, sub := range p.Subscriptions() {
		expiry, err := time.Parse(expiryKeyLayout, sub.Expiry)
		if err != nil {
			p.logger.Error().Str("expiry", sub.Expiry).Msg("bad subscription expiry")
			continue
		}

		if err := p.fetchOne(ctx, sub.Symbol, expiry); err != nil {
			p.logger.Warn().
				Str("symbol", sub.Symbol).
				Str("expiry", sub.Expiry).
				Err(err).
				Msg("chain fetch failed")
		}

		if ctx.Err() != nil {
			return
		}
	}

	if p.quotes != nil {
		p.quotes.Purge()
	}
}

// fetchOne fetches, stores and caches a single chain
func (p *Poller) fetchOne(ctx context.Context, symbol string, expiry time.Time) error {
	snap, err := p.fetcher.OptionChain(ctx, symbol, expiry)
	if err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("provider returned invalid chain: %w", err)
	}

	if p.store != nil {
		if err := p.store.SaveSnapshot(ctx, snap); err != nil {
			// keep the in-memory copy even when persistence fails
			p.logger.Error().Err(err).Str("symbol", symbol).Msg("snapshot save failed")
		}
	}

	p.mu.Lock()
	p.latest[subKey(symbol, expiry)] = snap
	p.mu.Unlock()

	p.logger.Debug().
		Str("symbol", symbol).
		Str("expiry", expiry.Format(expiryKeyLayout)).
		Int("records", len(snap.Records)).
		Msg("chain refreshed")
	return nil
}

// FetchNow starts an asynchronous fetch and returns its job. The job ends
// completed or failed; poll the registry for the outcome.
func (p *Poller) FetchNow(ctx context.Context, symbol string, expiry time.Time) (Job, error) {
	if p.jobs == nil {
		return Job{}, fmt.Errorf("poller: job registry not configured")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Job{}, fmt.Errorf("%w: empty symbol", faststock.ErrInvalidArgument)
	}

	job := p.jobs.Create(symbol, expiry)

	go func() {
		// detach from the request context; the fetch outlives the HTTP call
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()

		p.jobs.MarkRunning(job.ID)
		if err := p.fetchOne(fetchCtx, symbol, expiry); err != nil {
			p.jobs.MarkFailed(job.ID, err)
			return
		}
		p.jobs.MarkCompleted(job.ID)
	}()

	return job, nil
}

// Job returns the state of a previously started fetch job
func (p *Poller) Job(id string) (Job, error) {
	if p.jobs == nil {
		return Job{}, fmt.Errorf("%s: %w", id, faststock.ErrJobNotFound)
	}
	return p.jobs.Get(id)
}

// Jobs lists known fetch jobs, newest first
func (p *Poller) Jobs() []Job {
	if p.jobs == nil {
		return nil
	}
	return p.jobs.List()
}

// loadSubscriptions restores the polling set from disk
func (p *Poller) loadSubscriptions() error {
	if p.subsPath == "" {
		return nil
	}

	data, err := os.ReadFile(p.subsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read subscriptions: %w", err)
	}

	var subs []Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return fmt.Errorf("parse subscriptions: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range subs {
		expiry, err := time.Parse(expiryKeyLayout, sub.Expiry)
		if err != nil {
			p.logger.Warn().Str("expiry", sub.Expiry).Msg("skipping bad persisted subscription")
			continue
		}
		sub.Symbol = strings.ToUpper(strings.TrimSpace(sub.Symbol))
		p.subs[subKey(sub.Symbol, expiry)] = sub
	}
	return nil
}

// saveSubscriptions writes the polling set to disk
func (p *Poller) saveSubscriptions() error {
	if p.subsPath == "" {
		return nil
	}

	data, err := json.MarshalIndent(p.Subscriptions(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscriptions: %w", err)
	}

	if err := os.WriteFile(p.subsPath, data, 0o644); err != nil {
		return fmt.Errorf("write subscriptions: %w", err)
	}
	return nil
}
