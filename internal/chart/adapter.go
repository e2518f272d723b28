// Package chart owns the dashboard's chart handles: one per metric group,
// built from a fixed descriptor and driven through a pluggable Renderer.
// It also contains the terminal renderer and its sparkline drawing.
//
// An Adapter is single-writer. All Show/Update calls for an adapter must
// come from one goroutine.
package chart

import (
	"errors"
	"fmt"

	"github.com/luki/aqdash/internal/history"
)

// ErrUnknownGroup is returned when a group id has no registered descriptor.
var ErrUnknownGroup = errors.New("chart: unknown metric group")

// Data maps series keys to their current points.
type Data map[string]history.Series

// Handle is a chart instance bound to one mount point of a renderer.
type Handle interface {
	// Config gives mutable access to the chart's datasets.
	Config() *Config
	// Update asks the renderer to redraw from the current Config.
	Update()
	// Destroy releases the chart and its mount point.
	Destroy()
	// Alive reports whether the underlying render context still exists.
	Alive() bool
}

// Renderer creates chart handles.
type Renderer interface {
	CreateChart(mount string, cfg *Config) Handle
}

type liveChart struct {
	handle Handle
	slots  map[string]int // series key -> dataset index
}

// Adapter maps metric groups to their current chart handle.
type Adapter struct {
	renderer Renderer
	groups   map[GroupID]Descriptor
	order    []GroupID
	charts   map[GroupID]*liveChart
}

// NewAdapter creates an adapter drawing the given groups with r.
func NewAdapter(r Renderer, groups ...Descriptor) *Adapter {
	a := &Adapter{
		renderer: r,
		groups:   make(map[GroupID]Descriptor, len(groups)),
		charts:   make(map[GroupID]*liveChart),
	}
	for _, g := range groups {
		if _, dup := a.groups[g.ID]; !dup {
			a.order = append(a.order, g.ID)
		}
		a.groups[g.ID] = g
	}
	return a
}

// Groups returns the registered descriptors in registration order.
func (a *Adapter) Groups() []Descriptor {
	out := make([]Descriptor, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.groups[id])
	}
	return out
}

// Descriptor returns the descriptor registered for id.
func (a *Adapter) Descriptor(id GroupID) (Descriptor, bool) {
	d, ok := a.groups[id]
	return d, ok
}

// Show constructs the chart for a group, replacing any chart the group
// already has. The previous handle is destroyed first, so a mount point
// is never bound twice.
func (a *Adapter) Show(id GroupID, data Data) (Handle, error) {
	d, ok := a.groups[id]
	if !ok {
		return nil, fmt.Errorf("show %q: %w", id, ErrUnknownGroup)
	}

	a.release(id)

	cfg := NewConfig(d, data)
	slots := make(map[string]int, len(cfg.Data.Datasets))
	for i, ds := range cfg.Data.Datasets {
		slots[ds.Key] = i
	}

	h := a.renderer.CreateChart(d.Mount, cfg)
	a.charts[id] = &liveChart{handle: h, slots: slots}
	return h, nil
}

// ShowAll shows every registered group in order.
func (a *Adapter) ShowAll(data Data) error {
	for _, id := range a.order {
		if _, err := a.Show(id, data); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces the data of an existing chart and requests a redraw.
// It does nothing if the group has no chart yet or its render context is
// gone. Each dataset's Data is replaced by the slice from data, never
// merged; keys absent from data leave their dataset unchanged.
func (a *Adapter) Update(id GroupID, data Data) {
	c, ok := a.charts[id]
	if !ok || !c.handle.Alive() {
		return
	}
	datasets := c.handle.Config().Data.Datasets
	for key, slot := range c.slots {
		if series, ok := data[key]; ok {
			datasets[slot].Data = series
		}
	}
	c.handle.Update()
}

// UpdateCharts dispatches Update to every group that has a chart.
func (a *Adapter) UpdateCharts(data Data) {
	for _, id := range a.order {
		a.Update(id, data)
	}
}

// Handle returns the current handle of a group.
func (a *Adapter) Handle(id GroupID) (Handle, bool) {
	c, ok := a.charts[id]
	if !ok {
		return nil, false
	}
	return c.handle, true
}

// Live returns how many groups currently have a chart.
func (a *Adapter) Live() int {
	return len(a.charts)
}

// Close destroys every chart.
func (a *Adapter) Close() {
	for _, id := range a.order {
		a.release(id)
	}
}

func (a *Adapter) release(id GroupID) {
	c, ok := a.charts[id]
	if !ok {
		return
	}
	if c.handle.Alive() {
		c.handle.Destroy()
	}
	delete(a.charts, id)
}
