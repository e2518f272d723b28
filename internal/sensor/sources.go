package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Source delivers snapshots one at a time. Read blocks until a snapshot is
// available or ctx is done.
type Source interface {
	Read(ctx context.Context) (Snapshot, error)
	Close() error
}

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("sensor: source closed")

// WSSource reads snapshots from the sensor board's websocket push socket.
// After a failed Read the connection is dropped and redialled on the next
// call.
type WSSource struct {
	url    string
	dialer *websocket.Dialer
	now    func() time.Time

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWSSource creates a websocket source for url (e.g. ws://aq.local:8765).
func NewWSSource(url string) *WSSource {
	return &WSSource{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Read returns the next pushed snapshot.
func (s *WSSource) Read(ctx context.Context) (Snapshot, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.drop(conn)
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		return Snapshot{}, fmt.Errorf("read %s: %w", s.url, err)
	}
	return ParseSnapshot(data, s.now())
}

func (s *WSSource) connect(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.conn = conn
	return conn, nil
}

func (s *WSSource) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn.Close()
		s.conn = nil
	}
}

// Close closes the connection. Subsequent reads return ErrClosed.
func (s *WSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// simModel is the baseline and noise amplitude of a simulated metric.
var simModel = map[string][2]float64{
	"temperature":  {21, 0.2},
	"humidity":     {45, 0.5},
	"vocIndex":     {100, 3},
	"co2":          {600, 15},
	"pm1.0":        {3, 0.3},
	"pm2.5":        {5, 0.5},
	"pm4.0":        {6, 0.5},
	"pm10":         {7, 0.6},
	"no2":          {12, 1},
	"cpm":          {20, 2},
	"formaldehyde": {15, 1},
}

// SimSource produces random-walk readings for every known metric at a
// fixed interval. It is used for demos and when no board is reachable.
type SimSource struct {
	interval time.Duration
	rng      *rand.Rand
	values   map[string]float64
	ticker   *time.Ticker
	done     chan struct{}
	once     sync.Once
}

// NewSimSource creates a simulator emitting one snapshot per interval.
func NewSimSource(interval time.Duration, seed int64) *SimSource {
	if interval <= 0 {
		interval = time.Second
	}
	values := make(map[string]float64, len(simModel))
	for k, m := range simModel {
		values[k] = m[0]
	}
	return &SimSource{
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		values:   values,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
	}
}

// Read waits for the next tick and returns a fresh snapshot.
func (s *SimSource) Read(ctx context.Context) (Snapshot, error) {
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-s.done:
		return Snapshot{}, ErrClosed
	case t := <-s.ticker.C:
		return s.next(t), nil
	}
}

func (s *SimSource) next(t time.Time) Snapshot {
	snap := Snapshot{HardwareID: "simulator", Time: t}
	for _, m := range Metrics {
		if m.Key == "motion" {
			motion := 0.0
			if s.rng.Float64() < 0.1 {
				motion = 1
			}
			snap.Readings = append(snap.Readings, Reading{Module: "pir", Sensor: "SIM0.1", Metric: m.Key, Value: motion})
			continue
		}
		model := simModel[m.Key]
		v := s.values[m.Key] + s.rng.NormFloat64()*model[1]
		// pull back towards the baseline so the walk stays plausible
		v += (model[0] - v) * 0.05
		v = math.Max(0, v)
		s.values[m.Key] = v
		snap.Readings = append(snap.Readings, Reading{
			Module: "sim",
			Sensor: "SIM0.1",
			Metric: m.Key,
			Value:  math.Round(v*10) / 10,
		})
	}
	return snap
}

// Close stops the simulator.
func (s *SimSource) Close() error {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
	return nil
}
