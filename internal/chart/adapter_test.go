package chart

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/luki/aqdash/internal/history"
)

type fakeRenderer struct {
	created []*fakeHandle
	bound   map[string]int // mount -> live handles
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{bound: make(map[string]int)}
}

func (r *fakeRenderer) CreateChart(mount string, cfg *Config) Handle {
	h := &fakeHandle{r: r, mount: mount, cfg: cfg, alive: true}
	r.created = append(r.created, h)
	r.bound[mount]++
	return h
}

type fakeHandle struct {
	r         *fakeRenderer
	mount     string
	cfg       *Config
	alive     bool
	updates   int
	destroyed int
}

func (h *fakeHandle) Config() *Config { return h.cfg }
func (h *fakeHandle) Update()         { h.updates++ }
func (h *fakeHandle) Alive() bool     { return h.alive }
func (h *fakeHandle) Destroy() {
	h.destroyed++
	h.alive = false
	h.r.bound[h.mount]--
}

func ms(v int64) time.Time { return time.UnixMilli(v) }

func TestShowTemperatureChart(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	temp := history.Series{{X: ms(0), Y: 20}}
	hum := history.Series{{X: ms(0), Y: 50}}
	h, err := a.Show(GroupTemperature, Data{"temperature": temp, "humidity": hum})
	if err != nil {
		t.Fatalf("Show: %v", err)
	}

	ds := h.Config().Data.Datasets
	if len(ds) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(ds))
	}
	if len(ds[0].Data) != 1 || ds[0].Data[0].Y != 20 {
		t.Errorf("dataset[0]: got %+v", ds[0].Data)
	}
	if len(ds[1].Data) != 1 || ds[1].Data[0].Y != 50 {
		t.Errorf("dataset[1]: got %+v", ds[1].Data)
	}
	if ds[0].Label != "Temperature (°C)" || ds[1].Label != "Humidity (%)" {
		t.Errorf("labels: %q %q", ds[0].Label, ds[1].Label)
	}
	if r.created[0].mount != "temperatureChart" {
		t.Errorf("mount: got %q", r.created[0].mount)
	}
}

func TestConfigShape(t *testing.T) {
	cfg := NewConfig(DefaultGroups()[0], nil)

	if cfg.Type != "line" {
		t.Errorf("type: got %q", cfg.Type)
	}
	x := cfg.Options.Scales.X
	if x.Type != "time" || x.Time == nil || x.Time.Unit != "minute" {
		t.Errorf("x axis: got %+v", x)
	}
	if !cfg.Options.Scales.Y.BeginAtZero {
		t.Error("y axis must begin at zero")
	}
	for _, ds := range cfg.Data.Datasets {
		if ds.PointRadius != 0 {
			t.Errorf("%s: point radius %d", ds.Key, ds.PointRadius)
		}
		if ds.BorderColor == "" || ds.BorderColor != ds.BackgroundColor {
			t.Errorf("%s: colours %q / %q", ds.Key, ds.BorderColor, ds.BackgroundColor)
		}
		if ds.Data == nil {
			t.Errorf("%s: missing series must be empty, not nil", ds.Key)
		}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	js := string(data)
	for _, want := range []string{`"type":"line"`, `"unit":"minute"`, `"beginAtZero":true`, `"pointRadius":0`, `"data":[]`} {
		if !strings.Contains(js, want) {
			t.Errorf("config JSON missing %s: %s", want, js)
		}
	}
	if strings.Contains(js, "Warn") || strings.Contains(js, "warn") {
		t.Errorf("level bands must not be encoded: %s", js)
	}
}

func TestShowTwiceLeavesOneLiveHandle(t *testing.T) {
	for _, g := range DefaultGroups() {
		r := newFakeRenderer()
		a := NewAdapter(r, DefaultGroups()...)

		first, err := a.Show(g.ID, nil)
		if err != nil {
			t.Fatalf("%s: Show: %v", g.ID, err)
		}
		second, err := a.Show(g.ID, Data{})
		if err != nil {
			t.Fatalf("%s: Show: %v", g.ID, err)
		}

		if first.Alive() {
			t.Errorf("%s: first handle still alive", g.ID)
		}
		if !second.Alive() {
			t.Errorf("%s: second handle not alive", g.ID)
		}
		if r.bound[g.Mount] != 1 {
			t.Errorf("%s: %d live handles on mount, want 1", g.ID, r.bound[g.Mount])
		}
		if cur, _ := a.Handle(g.ID); cur != second {
			t.Errorf("%s: current handle is not the newest", g.ID)
		}
	}
}

func TestShowSkipsDestroyOfDeadHandle(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	h, _ := a.Show(GroupCO2, nil)
	fh := h.(*fakeHandle)
	fh.alive = false // render context torn down underneath us

	if _, err := a.Show(GroupCO2, nil); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if fh.destroyed != 0 {
		t.Errorf("dead handle destroyed %d times, want 0", fh.destroyed)
	}
}

func TestShowUnknownGroup(t *testing.T) {
	a := NewAdapter(newFakeRenderer(), DefaultGroups()...)
	if _, err := a.Show("wind", nil); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("got %v, want ErrUnknownGroup", err)
	}
}

func TestUpdateBeforeShowIsNoop(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	for _, g := range DefaultGroups() {
		a.Update(g.ID, Data{"co2": history.Series{{X: ms(1), Y: 1}}})
	}
	a.UpdateCharts(Data{"co2": nil})
	a.Update("nope", nil)

	if len(r.created) != 0 {
		t.Errorf("update created %d charts", len(r.created))
	}
}

func TestUpdateReplacesDataInPlace(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	h, _ := a.Show(GroupTemperature, Data{
		"temperature": history.Series{{X: ms(0), Y: 20}},
		"humidity":    history.Series{{X: ms(0), Y: 50}},
	})
	colours := []string{h.Config().Data.Datasets[0].BorderColor, h.Config().Data.Datasets[1].BorderColor}

	temp := history.Series{{X: ms(0), Y: 20}, {X: ms(60000), Y: 21}}
	hum := history.Series{{X: ms(0), Y: 50}, {X: ms(60000), Y: 49}}
	a.Update(GroupTemperature, Data{"humidity": hum, "temperature": temp})

	if len(r.created) != 1 {
		t.Fatalf("update re-created the chart: %d creations", len(r.created))
	}
	fh := r.created[0]
	if fh.destroyed != 0 || fh.updates != 1 {
		t.Errorf("destroyed=%d updates=%d, want 0 and 1", fh.destroyed, fh.updates)
	}

	ds := fh.cfg.Data.Datasets
	if &ds[0].Data[0] != &temp[0] || len(ds[0].Data) != len(temp) {
		t.Error("dataset[0] does not reference the temperature slice")
	}
	if &ds[1].Data[0] != &hum[0] || len(ds[1].Data) != len(hum) {
		t.Error("dataset[1] does not reference the humidity slice")
	}
	if ds[0].BorderColor != colours[0] || ds[1].BorderColor != colours[1] {
		t.Error("update changed colours")
	}
	if ds[0].Label != "Temperature (°C)" {
		t.Error("update changed labels")
	}
}

func TestUpdateKeepsMissingKeys(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	pm1 := history.Series{{X: ms(0), Y: 1}}
	a.Show(GroupPM, Data{"pm1.0": pm1})
	a.Update(GroupPM, Data{"pm10": history.Series{{X: ms(0), Y: 9}}})

	ds := r.created[0].cfg.Data.Datasets
	if &ds[0].Data[0] != &pm1[0] {
		t.Error("pm1.0 dataset was replaced by an update that did not carry it")
	}
	if ds[3].Data[0].Y != 9 {
		t.Errorf("pm10 dataset: got %+v", ds[3].Data)
	}
}

func TestUpdateSkipsDeadHandle(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	h, _ := a.Show(GroupVOC, nil)
	h.(*fakeHandle).alive = false
	a.Update(GroupVOC, Data{"vocIndex": history.Series{{X: ms(0), Y: 100}}})

	if h.(*fakeHandle).updates != 0 {
		t.Error("dead handle received an update")
	}
}

func TestShowAllAndClose(t *testing.T) {
	r := newFakeRenderer()
	a := NewAdapter(r, DefaultGroups()...)

	if err := a.ShowAll(nil); err != nil {
		t.Fatalf("ShowAll: %v", err)
	}
	if a.Live() != len(DefaultGroups()) {
		t.Errorf("Live: got %d, want %d", a.Live(), len(DefaultGroups()))
	}

	a.UpdateCharts(Data{"co2": history.Series{{X: ms(0), Y: 400}}})
	for _, h := range r.created {
		if h.updates != 1 {
			t.Errorf("%s: %d updates, want 1", h.mount, h.updates)
		}
	}

	a.Close()
	if a.Live() != 0 {
		t.Errorf("Live after Close: %d", a.Live())
	}
	for mount, n := range r.bound {
		if n != 0 {
			t.Errorf("%s still bound %d times", mount, n)
		}
	}
}

func TestGroupsOrderAndDescriptor(t *testing.T) {
	a := NewAdapter(newFakeRenderer(), DefaultGroups()...)
	groups := a.Groups()
	if len(groups) != 7 || groups[0].ID != GroupTemperature || groups[3].ID != GroupPM {
		t.Fatalf("unexpected group order: %+v", groups)
	}
	d, ok := a.Descriptor(GroupPM)
	if !ok {
		t.Fatal("pm descriptor missing")
	}
	keys := d.Keys()
	want := []string{"pm1.0", "pm2.5", "pm4.0", "pm10"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %q, want %q", i, keys[i], want[i])
		}
	}
}
