package store

import (
	"testing"
	"time"
)

func TestAddAndRetrieveBuilds(t *testing.T) {
	tmp := t.TempDir()
	s := New(tmp)

	record := BuildRecord{
		Board:     "uno",
		Sketch:    "examples/blink",
		Timestamp: time.Now(),
		Success:   true,
		Duration:  "3.2s",
		Artifacts: []string{"build/blink.hex"},
		SizeInfo:  "Program: 924 bytes",
	}

	if err := s.AddBuild(record); err != nil {
		t.Fatalf("AddBuild failed: %v", err)
	}

	builds, err := s.Builds()
	if err != nil {
		t.Fatalf("Builds failed: %v", err)
	}
	if len(builds) != 1 {
		t.Fatalf("expected 1 build, got %d", len(builds))
	}
	if builds[0].Board != "uno" {
		t.Errorf("expected board=uno, got=%s", builds[0].Board)
	}
	if builds[0].SizeInfo != "Program: 924 bytes" {
		t.Errorf("size info lost: %q", builds[0].SizeInfo)
	}
}

func TestAddMultipleRecords(t *testing.T) {
	tmp := t.TempDir()
	s := New(tmp)

	s.AddBuild(BuildRecord{Board: "uno", Timestamp: time.Now(), Success: true, Duration: "5s"})
	s.AddBuild(BuildRecord{Board: "esp32", Timestamp: time.Now(), Success: false, Duration: "3s"})
	s.AddFlash(FlashRecord{Board: "uno", Port: "/dev/ttyACM0", Timestamp: time.Now(), Success: true, Duration: "2s"})

	builds, _ := s.Builds()
	if len(builds) != 2 {
		t.Errorf("expected 2 builds, got %d", len(builds))
	}

	flashes, _ := s.Flashes()
	if len(flashes) != 1 {
		t.Errorf("expected 1 flash, got %d", len(flashes))
	}
	if flashes[0].Port != "/dev/ttyACM0" {
		t.Errorf("port lost: %q", flashes[0].Port)
	}
}

func TestEmptyStore(t *testing.T) {
	tmp := t.TempDir()
	s := New(tmp)

	builds, err := s.Builds()
	if err != nil {
		t.Fatalf("Builds on empty store failed: %v", err)
	}
	if len(builds) != 0 {
		t.Errorf("expected 0 builds, got %d", len(builds))
	}
}
