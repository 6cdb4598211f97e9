package board

import (
	"errors"
	"testing"
)

func TestFindCaseInsensitive(t *testing.T) {
	lower, err := Find("uno")
	if err != nil {
		t.Fatalf("Find(uno) failed: %v", err)
	}
	upper, err := Find("UNO")
	if err != nil {
		t.Fatalf("Find(UNO) failed: %v", err)
	}
	if lower != upper {
		t.Errorf("expected identical profile for uno/UNO, got %p vs %p", lower, upper)
	}
	if lower.Name != "Arduino Uno" {
		t.Errorf("expected name=Arduino Uno, got=%s", lower.Name)
	}
}

func TestFindUnknown(t *testing.T) {
	_, err := Find("nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown board")
	}
	var ub *UnknownBoardError
	if !errors.As(err, &ub) {
		t.Fatalf("expected UnknownBoardError, got %T", err)
	}
	if ub.ID != "nonexistent" {
		t.Errorf("expected ID=nonexistent, got=%s", ub.ID)
	}
}

func TestCatalogOrderStable(t *testing.T) {
	c := Catalog()
	if len(c) != 16 {
		t.Fatalf("expected 16 boards, got %d", len(c))
	}
	if c[0].ID != "uno" {
		t.Errorf("expected first board=uno, got=%s", c[0].ID)
	}
	if c[len(c)-1].ID != "nodemcu" {
		t.Errorf("expected last board=nodemcu, got=%s", c[len(c)-1].ID)
	}
}

func TestArchAndFCPUDefaults(t *testing.T) {
	cases := []struct {
		id   string
		arch string
		fcpu uint32
	}{
		{"uno", "avr", 16_000_000},
		{"pro_mini_3v3", "avr", 8_000_000},
		{"due", "sam", 84_000_000},
		{"pico", "rp2040", 133_000_000},
		{"esp32", "esp32", 240_000_000},
		{"nodemcu", "esp8266", 80_000_000},
	}
	for _, c := range cases {
		p, err := Find(c.id)
		if err != nil {
			t.Fatalf("Find(%s) failed: %v", c.id, err)
		}
		if p.Arch() != c.arch {
			t.Errorf("%s: expected arch=%s, got=%s", c.id, c.arch, p.Arch())
		}
		if p.FCPU() != c.fcpu {
			t.Errorf("%s: expected fcpu=%d, got=%d", c.id, c.fcpu, p.FCPU())
		}
	}
}

func TestProgrammerOnlyForAVR(t *testing.T) {
	uno, _ := Find("uno")
	prog, baud, ok := uno.Programmer()
	if !ok || prog != "arduino" || baud != 115200 {
		t.Errorf("uno: expected (arduino, 115200, true), got (%s, %d, %v)", prog, baud, ok)
	}

	esp, _ := Find("esp32")
	if _, _, ok := esp.Programmer(); ok {
		t.Error("esp32 should not report an avrdude programmer")
	}
	if esp.AVRMCU() != "" {
		t.Errorf("esp32 should have no AVR MCU, got=%s", esp.AVRMCU())
	}
}
