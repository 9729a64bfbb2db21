package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/metrics"
	"soulvan-gateway/internal/rpcclient"
)

// DefaultInterval is used when PollerConfig.Interval is zero.
const DefaultInterval = 5 * time.Second

// Recorder receives the snapshot after every cycle that changed something.
type Recorder interface {
	Record(ctx context.Context, snap Snapshot) error
}

type PollerConfig struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Recorder Recorder // optional
}

// Poller refreshes the cache on a fixed interval from a single goroutine,
// so two refreshes never run against the cache at the same time.
type Poller struct {
	rpc      rpcclient.Caller
	cache    *Cache
	interval time.Duration
	clock    clock.Clock
	log      *logger.Logger
	metrics  *metrics.Metrics
	recorder Recorder
}

func NewPoller(rpc rpcclient.Caller, cache *Cache, cfg PollerConfig) *Poller {
	p := &Poller{
		rpc:      rpc,
		cache:    cache,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		recorder: cfg.Recorder,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	p.log = p.log.With("module", "poller")
	return p
}

// Interval is shared with the stream publisher.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
// Ticks that arrive while a refresh is still running are dropped.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil // Context cancelled, normal shutdown
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	updated, err := p.Refresh(ctx)
	if err != nil && ctx.Err() == nil {
		p.log.Error("stats refresh incomplete, serving last known values", "updated", updated, "err", err)
	} else {
		p.log.Debug("stats refreshed", "updated", updated)
	}
	if updated == 0 || p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, p.cache.Snapshot()); err != nil {
		p.log.Error("record stats sample", "err", err)
	}
}

// Refresh queries every field once. A failed or null answer leaves the
// field at its previous value; the failures are returned together.
func (p *Poller) Refresh(ctx context.Context) (int, error) {
	var (
		combined error
		updated  int
	)
	for _, f := range Fields {
		raw, err := p.rpc.Call(ctx, f.Method(), nil)
		if err == nil && rpcclient.IsNull(raw) {
			err = fmt.Errorf("empty result")
		}
		if err != nil {
			p.metrics.PollResult(f.String(), false)
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", f.Method(), err))
			continue
		}
		p.cache.Set(f, raw, p.clock.Now())
		p.metrics.PollResult(f.String(), true)
		updated++
	}
	return updated, combined
}
