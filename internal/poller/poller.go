package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ispu-monitor-service/internal/domain"
	"github.com/couchcryptid/ispu-monitor-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// StationSource fetches the current station set.
type StationSource interface {
	FetchStations(ctx context.Context) ([]domain.Station, error)
}

// Publisher forwards a fresh snapshot to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// Options tunes the polling loop.
type Options struct {
	Interval time.Duration
	Retries  int
	Clock    clockwork.Clock
}

// Poller refreshes the station snapshot on a fixed interval.
type Poller struct {
	source    StationSource
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration
	retries   int
	backoff   time.Duration

	pollMu   sync.Mutex // serialises ticker polls and manual refreshes
	snapshot atomic.Pointer[domain.Snapshot]
}

// New creates a Poller. publisher may be nil to disable publishing.
func New(source StationSource, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Poller {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		source:    source,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		interval:  opts.Interval,
		retries:   opts.Retries,
		backoff:   initialBackoff,
	}
}

// Snapshot returns the most recent successful poll.
func (p *Poller) Snapshot() (domain.Snapshot, bool) {
	s := p.snapshot.Load()
	if s == nil {
		return domain.Snapshot{}, false
	}
	return *s, true
}

// CheckReadiness returns nil once the first poll has succeeded.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if p.snapshot.Load() == nil {
		return errors.New("no station snapshot has been fetched yet")
	}
	return nil
}

// Run polls immediately and then on every interval until the context is cancelled.
// Poll failures are logged and keep the previous snapshot.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "retries", p.retries)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll failed, keeping previous snapshot", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// Refresh fetches stations now, retrying with exponential backoff, and swaps
// in the new snapshot on success.
func (p *Poller) Refresh(ctx context.Context) (domain.Snapshot, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	start := p.clock.Now()
	stations, err := p.fetchWithRetry(ctx)
	p.metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.Polls.WithLabelValues("error").Inc()
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{Stations: stations, FetchedAt: p.clock.Now()}
	p.snapshot.Store(&snap)
	p.metrics.Polls.WithLabelValues("success").Inc()
	p.recordGauges(snap)
	p.logger.Info("station snapshot updated", "stations", len(stations))

	p.publish(ctx, snap)
	return snap, nil
}

func (p *Poller) fetchWithRetry(ctx context.Context) ([]domain.Station, error) {
	backoff := p.backoff
	for attempt := 0; ; attempt++ {
		stations, err := p.source.FetchStations(ctx)
		if err == nil {
			return stations, nil
		}
		if ctx.Err() != nil || attempt >= p.retries {
			return nil, err
		}

		p.logger.Warn("fetch stations failed, retrying", "error", err, "attempt", attempt+1, "backoff", backoff)
		if !p.sleep(ctx, backoff) {
			return nil, err
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func (p *Poller) publish(ctx context.Context, snap domain.Snapshot) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, snap); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Warn("publish snapshot failed", "error", err, "stations", len(snap.Stations))
	}
}

func (p *Poller) recordGauges(snap domain.Snapshot) {
	p.metrics.StationsTotal.Set(float64(len(snap.Stations)))
	for _, c := range domain.Summarize(snap.Stations) {
		p.metrics.StationsByBand.WithLabelValues(c.Category.Key).Set(float64(c.Count))
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
