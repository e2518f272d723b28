// Package history provides bounded per-metric time series with
// min/peak/avg/quantile statistics and age-based eviction.
package history

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/influxdata/tdigest"
)

// Point is a single timestamped value. It encodes as {"x": <unix ms>, "y": <value>}.
type Point struct {
	X time.Time
	Y float64
}

type wirePoint struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePoint{X: p.X.UnixMilli(), Y: p.Y})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	p.X = time.UnixMilli(w.X)
	p.Y = w.Y
	return nil
}

// Series is an ordered sequence of points, oldest first.
type Series []Point

// EvictAged drops points from the front of s while they are older than
// maxAge relative to now. Points must be in chronological order, so the
// removed points always form a prefix. The returned series shares s's
// backing array.
func EvictAged(s Series, maxAge time.Duration, now time.Time) Series {
	for len(s) > 0 && now.Sub(s[0].X) > maxAge {
		s = s[1:]
	}
	return s
}

// TrimData is EvictAged against the current wall clock.
func TrimData(s Series, maxAge time.Duration) Series {
	return EvictAged(s, maxAge, time.Now())
}

// Buffer stores a bounded series of readings for one metric.
type Buffer struct {
	Points Series
	Max    int // capacity
	Min    float64
	Peak   float64

	digest  *tdigest.TDigest
	samples int
}

// NewBuffer creates a new buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		Points: make(Series, 0, capacity),
		Max:    capacity,
		Min:    math.MaxFloat64,
		Peak:   -math.MaxFloat64,
		digest: tdigest.New(),
	}
}

// Push adds a new reading. The oldest point is shifted out once the
// buffer is full.
func (b *Buffer) Push(v float64, t time.Time) {
	p := Point{X: t, Y: v}
	if len(b.Points) >= b.Max {
		copy(b.Points, b.Points[1:])
		b.Points[len(b.Points)-1] = p
	} else {
		b.Points = append(b.Points, p)
	}

	if v < b.Min {
		b.Min = v
	}
	if v > b.Peak {
		b.Peak = v
	}
	b.digest.Add(v, 1)
	b.samples++
}

// Last returns the most recent value, or 0 if empty.
func (b *Buffer) Last() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	return b.Points[len(b.Points)-1].Y
}

// Samples returns how many values were ever pushed.
func (b *Buffer) Samples() int {
	return b.samples
}

// Avg returns the average across all stored points.
func (b *Buffer) Avg() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range b.Points {
		sum += p.Y
	}
	return sum / float64(len(b.Points))
}

// Quantile returns the q-quantile of every value ever pushed.
func (b *Buffer) Quantile(q float64) float64 {
	if b.samples == 0 {
		return 0
	}
	return b.digest.Quantile(q)
}

// LastNPoints returns a copy of the last n points.
func (b *Buffer) LastNPoints(n int) Series {
	if n <= 0 || len(b.Points) == 0 {
		return nil
	}
	start := len(b.Points) - n
	if start < 0 {
		start = 0
	}
	out := make(Series, len(b.Points[start:]))
	copy(out, b.Points[start:])
	return out
}

// Snapshot returns a copy of all stored points.
func (b *Buffer) Snapshot() Series {
	return b.LastNPoints(len(b.Points))
}

// Trim evicts points older than maxAge and returns how many were removed.
// Remaining points are moved to the front so capacity is kept.
func (b *Buffer) Trim(maxAge time.Duration, now time.Time) int {
	kept := EvictAged(b.Points, maxAge, now)
	removed := len(b.Points) - len(kept)
	if removed > 0 {
		n := copy(b.Points, kept)
		b.Points = b.Points[:n]
	}
	return removed
}

// Store manages buffers for all metrics.
type Store struct {
	Data     map[string]*Buffer
	Capacity int
}

// NewStore creates a new store with the given per-metric capacity.
func NewStore(capacity int) *Store {
	return &Store{
		Data:     make(map[string]*Buffer),
		Capacity: capacity,
	}
}

// Record adds a reading for the given metric key.
func (s *Store) Record(key string, v float64, t time.Time) {
	b, ok := s.Data[key]
	if !ok {
		b = NewBuffer(s.Capacity)
		s.Data[key] = b
	}
	b.Push(v, t)
}

// Get returns the buffer for a metric key, or nil.
func (s *Store) Get(key string) *Buffer {
	return s.Data[key]
}

// Keys returns the recorded metric keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.Data))
	for k := range s.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Series returns a copy of every buffer keyed by metric. The copies never
// alias buffer storage, which Push shifts in place.
func (s *Store) Series() map[string]Series {
	out := make(map[string]Series, len(s.Data))
	for k, b := range s.Data {
		out[k] = b.Snapshot()
	}
	return out
}

// TrimAll evicts aged points from every buffer and returns the total removed.
func (s *Store) TrimAll(maxAge time.Duration, now time.Time) int {
	total := 0
	for _, b := range s.Data {
		total += b.Trim(maxAge, now)
	}
	return total
}
