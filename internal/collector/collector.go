// Package collector runs the serve-mode loop: it reads snapshots from a
// source into the history store, periodically trims the history window and
// pushes it to the charts, and feeds the CSV and MQTT sinks.
//
// The loop goroutine is the only caller of the chart adapter.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/history"
	"github.com/luki/aqdash/internal/sensor"
)

// ErrStopped is returned by Reshow once Run has returned.
var ErrStopped = errors.New("collector: stopped")

// SinkFunc receives the latest snapshot on each sink tick.
type SinkFunc func(sensor.Snapshot) error

type sink struct {
	name     string
	interval time.Duration
	write    SinkFunc
}

// Options configures a Collector.
type Options struct {
	Window         time.Duration // history kept on the charts
	UpdateInterval time.Duration // chart refresh cadence
	RetryDelay     time.Duration // pause after a failed source read
}

type reshowReq struct {
	id    chart.GroupID
	reply chan error
}

// Collector owns an adapter, a history store and a set of sinks.
type Collector struct {
	src     sensor.Source
	adapter *chart.Adapter
	history *history.Store
	opts    Options
	sinks   []sink
	log     *zap.Logger
	now     func() time.Time

	reshow chan reshowReq
	done   chan struct{} // closed when Run returns

	mu     sync.RWMutex
	latest sensor.Snapshot
}

// New creates a collector. The adapter and store must not be used by any
// other goroutine once Run starts.
func New(src sensor.Source, adapter *chart.Adapter, store *history.Store, opts Options, log *zap.Logger) *Collector {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 5 * time.Second
	}
	if opts.Window <= 0 {
		opts.Window = 30 * time.Minute
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Collector{
		src:     src,
		adapter: adapter,
		history: store,
		opts:    opts,
		log:     log,
		now:     time.Now,
		reshow:  make(chan reshowReq),
		done:    make(chan struct{}),
	}
}

// AddSink registers a sink called every interval with the latest snapshot.
// It must be called before Run.
func (c *Collector) AddSink(name string, interval time.Duration, fn SinkFunc) {
	c.sinks = append(c.sinks, sink{name: name, interval: interval, write: fn})
}

// Latest returns the most recent snapshot. It is safe for concurrent use.
func (c *Collector) Latest() sensor.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Reshow asks the loop to rebuild the chart of one group from the current
// history. It blocks until the loop has done so, and fails with ErrStopped
// when Run has already returned.
func (c *Collector) Reshow(ctx context.Context, id chart.GroupID) error {
	if _, ok := c.adapter.Descriptor(id); !ok {
		return fmt.Errorf("reshow %q: %w", id, chart.ErrUnknownGroup)
	}
	req := reshowReq{id: id, reply: make(chan error, 1)}
	select {
	case c.reshow <- req:
	case <-c.done:
		return fmt.Errorf("reshow %q: %w", id, ErrStopped)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run shows every chart, then processes snapshots until ctx is done.
// All charts are destroyed on return. Run must be called at most once.
func (c *Collector) Run(ctx context.Context) error {
	defer close(c.done)
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	snaps := make(chan sensor.Snapshot, 16)
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.readLoop(ctx, snaps)
	}()

	if err := c.adapter.ShowAll(c.history.Series()); err != nil {
		return fmt.Errorf("show charts: %w", err)
	}
	defer c.adapter.Close()

	update := time.NewTicker(c.opts.UpdateInterval)
	defer update.Stop()

	sinkTicks := make(chan int)
	for i, s := range c.sinks {
		if s.interval <= 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(s.interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					select {
					case sinkTicks <- i:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	c.log.Info("collector started",
		zap.Duration("window", c.opts.Window),
		zap.Duration("update_interval", c.opts.UpdateInterval),
		zap.Int("sinks", len(c.sinks)))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("collector stopped")
			return nil
		case snap := <-snaps:
			c.record(snap)
		case <-update.C:
			c.refresh()
		case i := <-sinkTicks:
			c.flush(c.sinks[i])
		case req := <-c.reshow:
			_, err := c.adapter.Show(req.id, c.history.Series())
			req.reply <- err
		}
	}
}

func (c *Collector) readLoop(ctx context.Context, out chan<- sensor.Snapshot) {
	for {
		snap, err := c.src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, sensor.ErrClosed) {
				return
			}
			c.log.Warn("source read failed", zap.Error(err))
			select {
			case <-time.After(c.opts.RetryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) record(snap sensor.Snapshot) {
	if snap.Time.IsZero() {
		snap.Time = c.now()
	}
	for _, r := range snap.Readings {
		c.history.Record(r.Key(), r.Value, snap.Time)
	}
	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()
	c.log.Debug("snapshot recorded", zap.Int("readings", len(snap.Readings)))
}

// refresh evicts points that fell out of the window and pushes the
// remaining history to every live chart.
func (c *Collector) refresh() {
	if n := c.history.TrimAll(c.opts.Window, c.now()); n > 0 {
		c.log.Debug("evicted aged points", zap.Int("points", n))
	}
	c.adapter.UpdateCharts(c.history.Series())
}

func (c *Collector) flush(s sink) {
	snap := c.Latest()
	if snap.Empty() {
		return
	}
	if err := s.write(snap); err != nil {
		c.log.Error("sink write failed", zap.String("sink", s.name), zap.Error(err))
	}
}
