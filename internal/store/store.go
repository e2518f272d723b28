// Package store handles persistent CSV storage of sensor snapshots with
// daily file rotation.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/luki/aqdash/internal/sensor"
)

const fileLayout = "2006-01-02"

// DefaultDir is the data directory used by the sensor board.
const DefaultDir = "/aq/data"

// Columns returns the CSV header: timestamp followed by every known metric.
func Columns() []string {
	cols := []string{"timestamp"}
	for _, m := range sensor.Metrics {
		cols = append(cols, m.Key)
	}
	return cols
}

// DiskStore appends snapshots to daily CSV files stored as
// <dir>/YYYY-MM-DD.csv. Rows carry a unix-seconds timestamp and one
// column per known metric; a metric missing from a snapshot is left blank.
type DiskStore struct {
	dir     string
	current *os.File
	writer  *csv.Writer
	curDate string
}

// Record is a single row from a CSV log file.
type Record struct {
	Time   time.Time
	Values map[string]float64
}

// New creates a disk store in dir, creating the directory if needed.
func New(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create data dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the data directory.
func (d *DiskStore) Dir() string {
	return d.dir
}

// Write appends one snapshot to the file for the snapshot's day.
func (d *DiskStore) Write(snap sensor.Snapshot) error {
	if snap.Empty() {
		return nil
	}
	dateStr := snap.Time.Format(fileLayout)

	if d.curDate != dateStr || d.current == nil {
		d.Close()
		path := filepath.Join(d.dir, dateStr+".csv")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		d.current = f
		d.writer = csv.NewWriter(f)
		d.curDate = dateStr

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() == 0 {
			d.writer.Write(Columns())
		}
	}

	vals := snap.Values()
	row := []string{strconv.FormatInt(snap.Time.Unix(), 10)}
	for _, m := range sensor.Metrics {
		v, ok := vals[m.Key]
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
	}
	d.writer.Write(row)
	d.writer.Flush()
	return d.writer.Error()
}

// Close flushes and closes the current file.
func (d *DiskStore) Close() {
	if d.writer != nil {
		d.writer.Flush()
	}
	if d.current != nil {
		d.current.Close()
		d.current = nil
	}
}

// ListDays returns available log dates in dir (newest first).
func ListDays(dir string) ([]string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		day := strings.TrimSuffix(name, ".csv")
		if _, err := time.Parse(fileLayout, day); err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// LoadDay reads all records from one day's CSV file in dir.
func LoadDay(dir, day string) ([]Record, error) {
	if dir == "" {
		dir = DefaultDir
	}
	return LoadFile(filepath.Join(dir, day+".csv"))
}

// LoadFile reads all records from a CSV file. Columns are matched by the
// header, so files written with an older metric set still load.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	if len(header) == 0 || header[0] != "timestamp" {
		return nil, fmt.Errorf("read %s: missing header", path)
	}

	var records []Record
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		secs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		rec := Record{Time: time.Unix(secs, 0), Values: make(map[string]float64)}
		for i := 1; i < len(row) && i < len(header); i++ {
			if row[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				continue
			}
			rec.Values[header[i]] = v
		}
		records = append(records, rec)
	}

	return records, nil
}
