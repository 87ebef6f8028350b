// Package dashboard implements the live pond dashboard: it polls the latest
// sensor snapshot and action status of the selected pond and renders a
// formatted view.
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/models"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 5 * time.Second

// SwitchingText is shown between a pond switch and its first refresh.
const SwitchingText = "更新中…"

// Source fetches pond data. *pondapi.Client implements it.
type Source interface {
	LatestData(ctx context.Context, poolID string) (*models.SensorSnapshot, error)
	ActionStatus(ctx context.Context, poolID string) (*models.ActionStatus, error)
}

// Options configures a Poller.
type Options struct {
	Interval time.Duration // polling period (default: 5s)
	Logger   *zap.Logger
}

// Poller refreshes one pond on a fixed period.
//
// Every refresh takes a generation number. A result is rendered only if no
// newer generation has been rendered and the pond has not been switched since
// the refresh started, so a slow response never overwrites a newer one.
type Poller struct {
	source   Source
	renderer Renderer
	logger   *zap.Logger

	mu       sync.Mutex
	pool     string
	interval time.Duration
	issued   uint64 // last generation handed out
	floor    uint64 // generations <= floor predate the current pond
	applied  uint64 // newest generation rendered
	inflight map[uint64]context.CancelFunc

	intervalCh chan time.Duration
}

// NewPoller creates a poller rendering into r.
func NewPoller(source Source, r Renderer, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Poller{
		source:     source,
		renderer:   r,
		logger:     opts.Logger,
		interval:   opts.Interval,
		inflight:   make(map[uint64]context.CancelFunc),
		intervalCh: make(chan time.Duration, 1),
	}
}

// Pool returns the selected pond.
func (p *Poller) Pool() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the polling period of a running poller.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d

	// intervalCh holds at most the latest pending change
	select {
	case <-p.intervalCh:
	default:
	}
	select {
	case p.intervalCh <- d:
	default:
	}
}

// Select switches to poolID. In-flight requests for the previous pond are
// cancelled, the video reference is swapped right away and a refresh is
// issued without waiting for the next tick.
func (p *Poller) Select(ctx context.Context, poolID string) {
	p.SelectPool(poolID)
	go p.Refresh(ctx)
}

// SelectPool switches to poolID and renders the switching view, without
// issuing a refresh.
func (p *Poller) SelectPool(poolID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool = poolID
	p.floor = p.issued
	p.applied = p.floor
	p.cancelInflightLocked()

	v := BuildView(poolID, nil, nil)
	v.LastUpdate = SwitchingText
	v.Generation = p.floor
	p.renderLocked(v)
}

// Refresh fetches the selected pond once and renders the result. It reports
// whether the result was rendered; stale results are dropped.
func (p *Poller) Refresh(ctx context.Context) (View, bool) {
	p.mu.Lock()
	if p.pool == "" {
		p.mu.Unlock()
		return View{}, false
	}
	p.issued++
	gen := p.issued
	pool := p.pool
	reqCtx, cancel := context.WithCancel(ctx)
	p.inflight[gen] = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, gen)
		p.mu.Unlock()
		cancel()
	}()

	snap, status, err := p.fetch(reqCtx, pool)
	if ctx.Err() != nil {
		return View{}, false
	}
	if err != nil {
		p.logger.Warn("dashboard refresh failed",
			zap.String("pool", pool),
			zap.Uint64("generation", gen),
			zap.Error(err),
		)
		snap, status = nil, nil
	}

	v := BuildView(pool, snap, status)
	v.Generation = gen
	return v, p.apply(gen, pool, v)
}

// fetch gets the snapshot and action status concurrently. A failed action
// status only neutralizes the indicators; a failed snapshot fails the refresh.
func (p *Poller) fetch(ctx context.Context, pool string) (*models.SensorSnapshot, *models.ActionStatus, error) {
	var (
		snap   *models.SensorSnapshot
		status *models.ActionStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := p.source.LatestData(gctx, pool)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	g.Go(func() error {
		st, err := p.source.ActionStatus(gctx, pool)
		if err != nil {
			p.logger.Debug("action status unavailable", zap.String("pool", pool), zap.Error(err))
			return nil
		}
		status = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snap, status, nil
}

func (p *Poller) apply(gen uint64, pool string, v View) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen <= p.floor || gen < p.applied || pool != p.pool {
		metrics.PollsTotal.WithLabelValues("stale").Inc()
		p.logger.Debug("dropping stale dashboard result",
			zap.String("pool", pool),
			zap.Uint64("generation", gen),
			zap.Uint64("applied", p.applied),
		)
		return false
	}
	p.applied = gen

	if v.Available {
		metrics.PollsTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.PollsTotal.WithLabelValues("unavailable").Inc()
	}
	p.renderLocked(v)
	return true
}

func (p *Poller) renderLocked(v View) {
	if err := p.renderer.Render(v); err != nil {
		p.logger.Warn("dashboard render failed", zap.String("pool", v.PoolID), zap.Error(err))
	}
}

func (p *Poller) cancelInflightLocked() {
	for gen, cancel := range p.inflight {
		cancel()
		delete(p.inflight, gen)
	}
}

// Run refreshes immediately, then on every tick until ctx is done. Ticks fire
// on a fixed period; a slow refresh does not delay the next one.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	interval := p.interval
	p.mu.Unlock()

	go p.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cancelInflightLocked()
			p.mu.Unlock()
			return ctx.Err()
		case d := <-p.intervalCh:
			ticker.Reset(d)
		case <-ticker.C:
			go p.Refresh(ctx)
		}
	}
}
