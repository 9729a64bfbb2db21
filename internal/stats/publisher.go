package stats

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"soulvan-gateway/internal/metrics"
)

// Publisher gives every subscriber its own loop and timer, so a slow
// consumer delays nobody but itself.
type Publisher struct {
	cache    Source
	interval time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func NewPublisher(cache Source, interval time.Duration, clk clock.Clock, m *metrics.Metrics) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Publisher{cache: cache, interval: interval, clock: clk, metrics: m}
}

// Subscribe emits the current snapshot right away and then once per
// interval. The channel is closed when ctx is done; there is no replay.
//
// A frame waiting for a slow subscriber is re-read whenever the cache
// changes, so what the subscriber receives is never older than the cache.
func (p *Publisher) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot)
	ticker := p.clock.Ticker(p.interval)
	p.metrics.SubscriberAdded()

	go func() {
		defer close(ch)
		defer p.metrics.SubscriberRemoved()
		defer ticker.Stop()

		for {
			if !p.deliver(ctx, ch) {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// deliver blocks until the subscriber takes the latest snapshot or ctx ends.
func (p *Publisher) deliver(ctx context.Context, ch chan<- Snapshot) bool {
	for {
		changed := p.cache.Changed()
		snap := p.cache.Snapshot()
		select {
		case <-changed:
			continue
		default:
		}
		select {
		case ch <- snap:
			return true
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}
