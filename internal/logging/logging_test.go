package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, debug := range []bool{true, false} {
		log, err := New(debug)
		if err != nil {
			t.Fatalf("New(%v): %v", debug, err)
		}
		if got := log.Core().Enabled(-1); got != debug {
			t.Errorf("New(%v): debug enabled = %v", debug, got)
		}
	}
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aq.log")
	log, err := ToFile(path, false)
	if err != nil {
		t.Fatal(err)
	}
	log.Named("collector").Info("started")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"logger":"collector"`) || !strings.Contains(string(data), "started") {
		t.Errorf("unexpected log output: %s", data)
	}
}
